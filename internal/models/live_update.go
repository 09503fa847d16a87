// internal/models/live_update.go
package models

// LiveUpdate 推送流中的实时更新消息，不做持久化
type LiveUpdate struct {
	ChapterID ID     `json:"chapter_id"`
	User      string `json:"user"`
	Content   string `json:"content"`
}

// Status GET /api/status 响应
type Status struct {
	Store       string                 `json:"store"`
	Translator  string                 `json:"translator"`
	Subscribers int                    `json:"subscribers"`
	Relay       string                 `json:"relay,omitempty"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
}
