package trello

import (
	"fmt"
	"time"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"

	"github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// 看板和列表的 ID 很少变化，查询结果做本地缓存以减少 API 调用
const (
	cacheKeyBoard      = "board_id"
	cacheKeyListPrefix = "list_id:"
)

// Client Trello 看板客户端，作为队列源使用。
// 卡片在列表间的移动就是条目状态对外可见的形式。
type Client struct {
	cfg    *config.Config
	log    *logger.Logger
	client *resty.Client
	cache  *cache.Cache
}

// New 创建 Trello 客户端
func New(cfg *config.Config, log *logger.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.Trello.BaseURL)
	client.SetQueryParam("key", cfg.Trello.APIKey)
	client.SetQueryParam("token", cfg.Trello.Token)

	return &Client{
		cfg:    cfg,
		log:    log,
		client: client,
		cache:  cache.New(30*time.Minute, 10*time.Minute),
	}
}

// board Trello 看板
type board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// list Trello 列表
type list struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// card Trello 卡片
type card struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// attachment Trello 附件
type attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Bootstrap 查找配置的看板并确保所需列表存在，启动时调用一次
func (c *Client) Bootstrap() error {
	boardID, err := c.boardID()
	if err != nil {
		return err
	}
	c.log.Infof("已连接看板: %s (ID: %s)", c.cfg.Trello.BoardName, boardID)

	names := []string{
		c.cfg.Trello.QueueList,
		c.cfg.Trello.PlayingList,
		c.cfg.Trello.PlayedList,
		c.cfg.Trello.FailedList,
	}
	for _, name := range names {
		if _, err := c.listID(name); err != nil {
			return err
		}
	}
	return nil
}

// boardID 按名称查找看板 ID，结果缓存
func (c *Client) boardID() (string, error) {
	if id, ok := c.cache.Get(cacheKeyBoard); ok {
		return id.(string), nil
	}

	var boards []board
	resp, err := c.client.R().
		SetQueryParam("fields", "name").
		SetResult(&boards).
		Get("/members/me/boards")
	if err != nil {
		return "", fmt.Errorf("获取看板列表失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("获取看板列表失败，状态码: %d", resp.StatusCode())
	}

	for _, b := range boards {
		if b.Name == c.cfg.Trello.BoardName {
			c.cache.Set(cacheKeyBoard, b.ID, cache.DefaultExpiration)
			return b.ID, nil
		}
	}

	names := make([]string, 0, len(boards))
	for _, b := range boards {
		names = append(names, b.Name)
	}
	return "", fmt.Errorf("未找到看板 %q，可用看板: %v", c.cfg.Trello.BoardName, names)
}

// listID 按名称查找列表 ID，不存在时创建，结果缓存
func (c *Client) listID(name string) (string, error) {
	key := cacheKeyListPrefix + name
	if id, ok := c.cache.Get(key); ok {
		return id.(string), nil
	}

	boardID, err := c.boardID()
	if err != nil {
		return "", err
	}

	var lists []list
	resp, err := c.client.R().
		SetQueryParam("fields", "name").
		SetResult(&lists).
		Get("/boards/" + boardID + "/lists")
	if err != nil {
		return "", fmt.Errorf("获取列表失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("获取列表失败，状态码: %d", resp.StatusCode())
	}

	for _, l := range lists {
		if l.Name == name {
			c.cache.Set(key, l.ID, cache.DefaultExpiration)
			return l.ID, nil
		}
	}

	// 列表不存在，创建它
	var created list
	resp, err = c.client.R().
		SetQueryParam("name", name).
		SetQueryParam("idBoard", boardID).
		SetQueryParam("pos", "bottom").
		SetResult(&created).
		Post("/lists")
	if err != nil {
		return "", fmt.Errorf("创建列表 %q 失败: %w", name, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("创建列表 %q 失败，状态码: %d", name, resp.StatusCode())
	}

	c.log.Infof("已创建列表: %s", name)
	c.cache.Set(key, created.ID, cache.DefaultExpiration)
	return created.ID, nil
}

// ListEligible 返回待播放列表中的全部卡片，保持看板中的顺序（FIFO）
func (c *Client) ListEligible() ([]*model.QueueItem, error) {
	listID, err := c.listID(c.cfg.Trello.QueueList)
	if err != nil {
		return nil, err
	}

	var cards []card
	resp, err := c.client.R().
		SetQueryParam("fields", "name,desc").
		SetResult(&cards).
		Get("/lists/" + listID + "/cards")
	if err != nil {
		return nil, fmt.Errorf("获取队列卡片失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("获取队列卡片失败，状态码: %d", resp.StatusCode())
	}

	items := make([]*model.QueueItem, 0, len(cards))
	for _, cd := range cards {
		items = append(items, &model.QueueItem{
			ID:          cd.ID,
			Name:        cd.Name,
			Description: cd.Desc,
			State:       model.ItemStateQueued,
		})
	}
	return items, nil
}

// listNameFor 条目状态到列表名称的映射
func (c *Client) listNameFor(state model.ItemState) string {
	switch state {
	case model.ItemStateAcquiring, model.ItemStateStreaming:
		return c.cfg.Trello.PlayingList
	case model.ItemStateCompleted:
		return c.cfg.Trello.PlayedList
	case model.ItemStateFailed:
		return c.cfg.Trello.FailedList
	default:
		return c.cfg.Trello.QueueList
	}
}

// ReportState 把卡片移动到状态对应的列表。重新排队的卡片放到队尾，
// 避免一张反复失败的卡片让后面的条目饿死。
func (c *Client) ReportState(item *model.QueueItem, state model.ItemState) error {
	listID, err := c.listID(c.listNameFor(state))
	if err != nil {
		return err
	}

	resp, err := c.client.R().
		SetQueryParam("idList", listID).
		SetQueryParam("pos", "bottom").
		Put("/cards/" + item.ID)
	if err != nil {
		return fmt.Errorf("移动卡片失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("移动卡片失败，状态码: %d", resp.StatusCode())
	}

	c.log.Infof("卡片 %q 已移动到 %q", item.Name, c.listNameFor(state))
	return nil
}

// Attachment 返回卡片的第一个附件，没有附件时返回 nil
func (c *Client) Attachment(item *model.QueueItem) (*model.AttachmentRef, error) {
	var attachments []attachment
	resp, err := c.client.R().
		SetQueryParam("fields", "name,url").
		SetResult(&attachments).
		Get("/cards/" + item.ID + "/attachments")
	if err != nil {
		return nil, fmt.Errorf("获取卡片附件失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("获取卡片附件失败，状态码: %d", resp.StatusCode())
	}

	if len(attachments) == 0 {
		return nil, nil
	}

	a := attachments[0]
	return &model.AttachmentRef{ID: a.ID, Name: a.Name, URL: a.URL}, nil
}
