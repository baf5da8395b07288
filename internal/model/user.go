package model

// User 教师账号表 — 对应 users
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Email        string  `gorm:"type:varchar(255);not null;uniqueIndex"        json:"email"`
	Name         *string `gorm:"type:varchar(100)"                              json:"name,omitempty"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                     json:"-"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// DisplayName 返回教师显示名，未设置时回退为邮箱
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}
