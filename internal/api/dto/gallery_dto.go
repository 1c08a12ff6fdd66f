package dto

import "time"

// ==================== 画廊 ====================

// GalleryItem 画廊条目
type GalleryItem struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style"`
	URL       string    `json:"url"`
	ThumbURL  string    `json:"thumb_url,omitempty"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}

// GalleryListResponse 画廊列表响应
type GalleryListResponse struct {
	Items []GalleryItem `json:"items"`
}

// DeleteImageResponse 删除图稿响应
type DeleteImageResponse struct {
	ID int64 `json:"id"`
}
