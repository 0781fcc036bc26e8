package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionActive  string = "ACTIVE"
	SessionDeleted string = "DELETED"
)

// ChatSession owns its transcript: messages are stored as an ordered JSON
// list on the row rather than as independent rows. Version guards
// read-modify-write appends; UpdateTime is monotonically non-decreasing and
// bumped on every append.
type ChatSession struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId string `gorm:"index;not null"`
	Title  string
	Status string `gorm:"size:20;not null"`

	ProjectId uuid.NullUUID `gorm:"type:uuid;index"`

	ActiveFile datatypes.JSON
	Messages   datatypes.JSON

	Version int64 `gorm:"not null;default:0"`

	CreationTime time.Time
	UpdateTime   time.Time `gorm:"index"`
}

const (
	ProjectActive   string = "ACTIVE"
	ProjectArchived string = "ARCHIVED"
)

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerId     string `gorm:"index;not null"`
	Title       string
	Description string
	Starred     bool   `gorm:"default:false"`
	Status      string `gorm:"size:20;not null"`

	CreationTime time.Time
	UpdateTime   time.Time
}

// FileMetadata records one uploaded file: the analysis backend's file id plus
// the durable object-store location and the schema extracted at upload time.
type FileMetadata struct {
	FileId string `gorm:"primaryKey;size:255"`

	UserId    string `gorm:"index;not null"`
	ObjectUrl string
	Filename  string
	FileSize  int64

	Columns  datatypes.JSON
	RowCount int64
	Preview  datatypes.JSON

	UploadedAt time.Time
}
