package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

func newStreamRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	segmentDir := t.TempDir()
	r := gin.New()
	h := NewStreamHandler(segmentDir)
	r.GET("/stream/*filename", h.Serve)
	return r, segmentDir
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestServePlaylistMIME(t *testing.T) {
	r, dir := newStreamRouter(t)
	if err := os.WriteFile(filepath.Join(dir, "playlist.m3u8"), []byte("#EXTM3U\n"), 0644); err != nil {
		t.Fatalf("写入播放列表失败: %v", err)
	}

	w := doGet(r, "/stream/playlist.m3u8")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码应为 200, 实际 %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/vnd.apple.mpegurl" {
		t.Fatalf("播放列表 MIME 类型不符: %s", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("缺少跨域头: %q", got)
	}
}

func TestServeSegmentMIME(t *testing.T) {
	r, dir := newStreamRouter(t)
	if err := os.WriteFile(filepath.Join(dir, "segment_000.ts"), []byte("ts-data"), 0644); err != nil {
		t.Fatalf("写入切片失败: %v", err)
	}

	w := doGet(r, "/stream/segment_000.ts")
	if w.Code != http.StatusOK {
		t.Fatalf("状态码应为 200, 实际 %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp2t" {
		t.Fatalf("切片 MIME 类型不符: %s", got)
	}
}

func TestServeMissingFile(t *testing.T) {
	r, _ := newStreamRouter(t)
	w := doGet(r, "/stream/nope.ts")
	if w.Code != http.StatusNotFound {
		t.Fatalf("不存在的文件应返回 404, 实际 %d", w.Code)
	}
}
