package sqlite

import "time"

type parcelRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	TrackingNumber string `gorm:"uniqueIndex;size:40;not null"`
	ZoneCode       string `gorm:"size:5;not null"`
	RouteNumber    string `gorm:"size:3;not null"`
	Status         string `gorm:"index;size:16;not null"`
	ScannedAt      *time.Time
	ScannedBy      *string   `gorm:"size:255"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false;not null"`
	Version        int64     `gorm:"not null;default:1"`
}

func (parcelRow) TableName() string { return "parcels" }

type auditEventRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	TrackingNumber string    `gorm:"index;size:40;not null"`
	EventType      string    `gorm:"size:32;not null"`
	ScannedBy      string    `gorm:"size:255;not null"`
	ScannedAt      time.Time `gorm:"not null"`
	SessionID      string    `gorm:"index;size:255;not null"`
	Message        *string   `gorm:"type:text"`
}

func (auditEventRow) TableName() string { return "audit_events" }

type importBatchRow struct {
	ID               string    `gorm:"primaryKey;size:36"`
	FileName         string    `gorm:"size:1024;not null"`
	Checksum         string    `gorm:"index;size:64;not null"`
	TotalRows        int       `gorm:"not null"`
	Imported         int       `gorm:"not null"`
	DuplicatesInFile int       `gorm:"not null"`
	DuplicatesInDB   int       `gorm:"column:duplicates_in_db;not null"`
	InvalidRows      int       `gorm:"not null"`
	ImportedBy       string    `gorm:"size:255;not null"`
	CreatedAt        time.Time `gorm:"index;autoCreateTime:false;not null"`
	Content          []byte
	ContentAlgo      string `gorm:"size:16;not null"`
}

func (importBatchRow) TableName() string { return "import_batches" }
