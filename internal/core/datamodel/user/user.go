package user

import "time"

type Role struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"column:name;size:50;not null;uniqueIndex"`
	Description  string    `gorm:"column:description;not null"`
	CanDelete    bool      `gorm:"column:can_delete;not null"`
	Capabilities string    `gorm:"column:capabilities;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Role) TableName() string { return "roles" }

type User struct {
	ID           int64      `gorm:"primaryKey"`
	EmployeeID   string     `gorm:"column:employee_id;size:20;not null;uniqueIndex"`
	Username     string     `gorm:"column:username;size:150;not null;uniqueIndex"`
	FullName     string     `gorm:"column:full_name;size:100;not null"`
	Email        string     `gorm:"column:email;size:254;not null;uniqueIndex"`
	Phone        string     `gorm:"column:phone;size:15;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	RoleID       *int64     `gorm:"column:role_id;index"`
	Role         *Role      `gorm:"foreignKey:RoleID;references:ID"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	IsDeleted    bool       `gorm:"column:is_deleted;not null;index"`
	OTPCode      *string    `gorm:"column:otp_code;size:6"`
	OTPExpiry    *time.Time `gorm:"column:otp_expiry"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// EmployeeSequence holds the highest employee number issued so far.
type EmployeeSequence struct {
	Name  string `gorm:"column:name;primaryKey;size:50"`
	Value int64  `gorm:"column:value;not null"`
}

func (EmployeeSequence) TableName() string { return "employee_sequences" }
