package migration_0

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schema snapshot at migration 0. Types are copied rather than referenced so
// later schema changes don't silently rewrite history.

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

func Migration(txn *gorm.DB) error {
	return txn.AutoMigrate(&ChatSession{}, &Project{}, &FileMetadata{})
}

func Rollback(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&ChatSession{}, &Project{}, &FileMetadata{})
}
