package trello

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"
)

// fakeTrello 模拟 Trello API 的最小子集
type fakeTrello struct {
	mu           sync.Mutex
	boardCalls   int
	createdLists []string
	movedTo      map[string]string // 卡片 ID -> 目标列表 ID
	srv          *httptest.Server
}

func newFakeTrello(t *testing.T) *fakeTrello {
	t.Helper()
	f := &fakeTrello{movedTo: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("/members/me/boards", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.boardCalls++
		f.mu.Unlock()
		writeJSON(w, []map[string]string{
			{"id": "b1", "name": "Radio"},
			{"id": "b2", "name": "Other"},
		})
	})
	mux.HandleFunc("/boards/b1/lists", func(w http.ResponseWriter, r *http.Request) {
		// Failed 列表缺失，Bootstrap 需要创建它
		writeJSON(w, []map[string]string{
			{"id": "l1", "name": "Queue"},
			{"id": "l2", "name": "Now Playing"},
			{"id": "l3", "name": "Played"},
		})
	})
	mux.HandleFunc("/lists", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		name := r.URL.Query().Get("name")
		f.mu.Lock()
		f.createdLists = append(f.createdLists, name)
		f.mu.Unlock()
		writeJSON(w, map[string]string{"id": "l4", "name": name})
	})
	mux.HandleFunc("/lists/l1/cards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]string{
			{"id": "c1", "name": "First Song", "desc": "120"},
			{"id": "c2", "name": "Second Song", "desc": ""},
		})
	})
	mux.HandleFunc("/cards/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			id := r.URL.Path[len("/cards/"):]
			f.mu.Lock()
			f.movedTo[id] = r.URL.Query().Get("idList")
			f.mu.Unlock()
			writeJSON(w, map[string]string{"id": id})
		case r.URL.Path == "/cards/c1/attachments":
			writeJSON(w, []map[string]string{
				{"id": "a1", "name": "song.mp3", "url": "http://files.example/song.mp3"},
				{"id": "a2", "name": "cover.jpg", "url": "http://files.example/cover.jpg"},
			})
		case r.URL.Path == "/cards/c2/attachments":
			writeJSON(w, []map[string]string{})
		default:
			http.NotFound(w, r)
		}
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeTrello) *Client {
	t.Helper()
	cfg := &config.Config{
		Trello: config.TrelloConfig{
			APIKey:      "test-key",
			Token:       "test-token",
			BaseURL:     f.srv.URL,
			BoardName:   "Radio",
			QueueList:   "Queue",
			PlayingList: "Now Playing",
			PlayedList:  "Played",
			FailedList:  "Failed",
		},
	}
	log := logger.New(config.LogConfig{Level: "error", Output: "stdout"})
	return New(cfg, log)
}

func TestBootstrapCreatesMissingLists(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	if err := c.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap 失败: %v", err)
	}

	f.mu.Lock()
	created := append([]string(nil), f.createdLists...)
	f.mu.Unlock()
	if len(created) != 1 || created[0] != "Failed" {
		t.Fatalf("应只创建缺失的 Failed 列表, 实际创建: %v", created)
	}
}

func TestBoardLookupIsCached(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	if err := c.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap 失败: %v", err)
	}
	if _, err := c.ListEligible(); err != nil {
		t.Fatalf("获取队列失败: %v", err)
	}

	f.mu.Lock()
	calls := f.boardCalls
	f.mu.Unlock()
	if calls != 1 {
		t.Fatalf("看板查询应被缓存, 实际请求 %d 次", calls)
	}
}

func TestListEligibleKeepsBoardOrder(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	items, err := c.ListEligible()
	if err != nil {
		t.Fatalf("获取队列失败: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("应返回 2 张卡片, 实际 %d", len(items))
	}
	if items[0].ID != "c1" || items[1].ID != "c2" {
		t.Fatalf("卡片顺序应与看板一致: %v, %v", items[0], items[1])
	}
	if items[0].Description != "120" {
		t.Fatalf("卡片描述应保留: %q", items[0].Description)
	}
	if items[0].State != model.ItemStateQueued {
		t.Fatalf("列表中的卡片状态应为 queued, 实际 %s", items[0].State)
	}
}

func TestReportStateMovesCard(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	item := &model.QueueItem{ID: "c1", Name: "First Song"}
	cases := []struct {
		state  model.ItemState
		listID string
	}{
		{model.ItemStateAcquiring, "l2"},
		{model.ItemStateStreaming, "l2"},
		{model.ItemStateCompleted, "l3"},
		{model.ItemStateQueued, "l1"},
	}
	for _, tc := range cases {
		if err := c.ReportState(item, tc.state); err != nil {
			t.Fatalf("上报状态 %s 失败: %v", tc.state, err)
		}
		f.mu.Lock()
		got := f.movedTo["c1"]
		f.mu.Unlock()
		if got != tc.listID {
			t.Fatalf("状态 %s 应移动到列表 %s, 实际 %s", tc.state, tc.listID, got)
		}
	}
}

func TestReportStateFailedUsesCreatedList(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	item := &model.QueueItem{ID: "c1", Name: "First Song"}
	if err := c.ReportState(item, model.ItemStateFailed); err != nil {
		t.Fatalf("上报失败状态出错: %v", err)
	}
	f.mu.Lock()
	got := f.movedTo["c1"]
	f.mu.Unlock()
	if got != "l4" {
		t.Fatalf("失败状态应移动到新建的 Failed 列表, 实际 %s", got)
	}
}

func TestAttachmentReturnsFirst(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	ref, err := c.Attachment(&model.QueueItem{ID: "c1"})
	if err != nil {
		t.Fatalf("获取附件失败: %v", err)
	}
	if ref == nil || ref.Name != "song.mp3" {
		t.Fatalf("应返回第一个附件, 实际 %+v", ref)
	}
}

func TestAttachmentNilWhenEmpty(t *testing.T) {
	f := newFakeTrello(t)
	c := newTestClient(t, f)

	ref, err := c.Attachment(&model.QueueItem{ID: "c2"})
	if err != nil {
		t.Fatalf("获取附件失败: %v", err)
	}
	if ref != nil {
		t.Fatalf("没有附件时应返回 nil, 实际 %+v", ref)
	}
}
