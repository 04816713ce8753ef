package dto

import "github.com/hongminglow/chat-be/internal/models"

type RegisterRequest struct {
	Username    string `json:"username"`
	Phone       string `json:"phone"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// LoginRequest accepts a phone number or username as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}
