package handler

import (
	"time"

	"gatehouse/internal/directory/models"
)

// ApplicationResponse is the admin-facing view of an application. The
// secret key hash never leaves the service.
type ApplicationResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	PublicKey   string           `json:"public_key"`
	Config      models.AppConfig `json:"config"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ApplicationCreateResponse carries the one-time cleartext secret key.
type ApplicationCreateResponse struct {
	Application *ApplicationResponse `json:"application"`
	SecretKey   string               `json:"secret_key"`
}

func toApplicationResponse(app *models.Application) *ApplicationResponse {
	return &ApplicationResponse{
		ID:          app.ID,
		Name:        app.Name,
		Slug:        app.Slug,
		Description: app.Description,
		Status:      string(app.Status),
		PublicKey:   app.Keys.PublicKey,
		Config:      app.Config,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}
