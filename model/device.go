package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device 局域网内加入桌面会话的设备
type Device struct {
	ID         int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	DeviceID   string    `json:"device_id" gorm:"size:36;uniqueIndex;not null"`
	DeviceName string    `json:"device_name" gorm:"size:100"`
	OSVersion  string    `json:"os_version" gorm:"size:50"`
	RAMMB      int       `json:"ram_mb"`
	StorageMB  int       `json:"storage_mb"`
	IPAddress  string    `json:"ip_address" gorm:"size:45"`
	IsActive   bool      `json:"is_active" gorm:"default:true;index"`
	JoinedAt   time.Time `json:"joined_at" gorm:"autoCreateTime"`
	LastSeen   time.Time `json:"last_seen" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Device) TableName() string {
	return "devices"
}

// BeforeCreate assigns a UUID when none was given.
func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.DeviceID == "" {
		d.DeviceID = uuid.NewString()
	}
	return nil
}

// Song 设备登记的歌曲. FilePath is set once the file has been uploaded or
// fetched from the owning device.
type Song struct {
	ID              int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	SongID          string    `json:"song_id" gorm:"size:36;uniqueIndex;not null"`
	DeviceRef       *int64    `json:"-" gorm:"index"`
	Device          *Device   `json:"device,omitempty" gorm:"foreignKey:DeviceRef;constraint:OnDelete:SET NULL"`
	Title           string    `json:"title" gorm:"size:200;not null"`
	Artist          string    `json:"artist" gorm:"size:200"`
	DurationSeconds int       `json:"duration_seconds"`
	FileSizeKB      int       `json:"file_size_kb"`
	FileFormat      string    `json:"file_format" gorm:"size:50"`
	FilePath        string    `json:"-" gorm:"size:500"`
	FileUploaded    bool      `json:"file_uploaded" gorm:"default:false"`
	CreatedAt       time.Time `json:"upload_timestamp"`
	UpdatedAt       time.Time `json:"-"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

func (s *Song) BeforeCreate(tx *gorm.DB) error {
	if s.SongID == "" {
		s.SongID = uuid.NewString()
	}
	return nil
}
