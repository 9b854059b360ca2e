package models

import (
	"time"
)

// FileRecord describes one uploaded file: its namespace, its download link
// and its checkout flag.
type FileRecord struct {
	ID           string    `json:"id" bson:"_id" gorm:"type:uuid;primaryKey"`
	CompanyID    string    `json:"company_id" bson:"company_id" gorm:"index:idx_files_key;not null"`
	ProjectID    string    `json:"project_id" bson:"project_id" gorm:"index:idx_files_key;not null"`
	Filename     string    `json:"filename" bson:"filename" gorm:"index:idx_files_key;index;not null"`
	DownloadLink string    `json:"download_link" bson:"download_link" gorm:"type:text;not null"`
	IsLocked     bool      `json:"isLocked" bson:"isLocked" gorm:"column:is_locked;default:false"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at" gorm:"autoUpdateTime"`
}

func (FileRecord) TableName() string {
	return "files"
}

// Path is the blob path the record points at.
func (r FileRecord) Path() string {
	return r.CompanyID + "/" + r.ProjectID + "/" + r.Filename
}
