package handlers

import "github.com/google/uuid"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID uuid.UUID `json:"userId"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Revoked *int64 `json:"revoked,omitempty"`
}

type userView struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type meResponse struct {
	User userView `json:"user"`
}
