package models

import (
	"time"

	"gorm.io/datatypes"
)

// ConversionMetadata хранится одним JSON-документом рядом с записью.
type ConversionMetadata struct {
	SlideCount     int    `json:"slideCount"`
	CharacterCount int    `json:"characterCount"`
	GenerationTime int64  `json:"generationTime"` // мс
	ImagesCount    int    `json:"imagesCount"`
	TemplateUsed   string `json:"templateUsed,omitempty"`
}

// Conversion: запись о сгенерированной презентации. Только добавляется,
// удаляется вместе с владельцем.
type Conversion struct {
	ID        string                                  `gorm:"primaryKey;size:36" json:"id"`
	UserID    string                                  `gorm:"size:36;not null;index:idx_conversions_user_ts,priority:1" json:"userId"`
	Markdown  string                                  `gorm:"type:text;not null" json:"markdown,omitempty"`
	Filename  string                                  `gorm:"size:255;not null" json:"filename"`
	FilePath  string                                  `gorm:"size:512;not null" json:"filePath"` // ключ в storage
	Timestamp time.Time                               `gorm:"not null;index;index:idx_conversions_user_ts,priority:2,sort:desc" json:"timestamp"`
	Metadata  datatypes.JSONType[ConversionMetadata] `json:"metadata"`
}
