package dto

import "github.com/fashionlens/fashion-lens-be/internal/models"

type FullName struct {
	FirstName string `json:"firstname" validate:"required,min=3"`
	LastName  string `json:"lastname" validate:"omitempty,min=3"`
}

type RegisterRequest struct {
	Email        string   `json:"email" validate:"required,email,min=5"`
	FullName     FullName `json:"fullname"`
	Password     string   `json:"password" validate:"required,min=6,max=72"`
	Organization string   `json:"organization" validate:"required,min=3"`
	Role         string   `json:"role" validate:"required,oneof=Designer Editor Manager Others"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type ProfileResponse struct {
	User models.User `json:"user"`
}
