// Package templates stores the editable per-stage message templates. Save
// validates placeholders up front so a typo surfaces to the editor instead of
// rendering literally into thousands of outbound messages.
package templates

import (
	"context"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/template"
)

// Store persists message templates keyed by stage.
type Store interface {
	// GetByStage returns the active template for a stage.
	GetByStage(ctx context.Context, stage models.Stage) (*models.Template, error)

	// List returns all templates ordered by stage.
	List(ctx context.Context) ([]*models.Template, error)

	// Save upserts a stage's template after validating its placeholders.
	Save(ctx context.Context, stage models.Stage, name, text string) error
}

// knownFieldsFor picks the placeholder vocabulary for a stage. Admin alerts
// additionally carry the running registration totals.
func knownFieldsFor(stage models.Stage) map[string]struct{} {
	if stage == models.StageAdmin {
		return template.KnownAdminFields()
	}
	return template.KnownFields()
}

// Defaults returns the built-in templates used to seed an empty store.
func Defaults() []models.Template {
	return []models.Template{
		{
			Name:  "Registration Confirmation",
			Stage: models.StageConfirmation,
			Text: "Jay Swaminarayan {name},\n\n" +
				"Your registration is confirmed.\n\n" +
				"Registration No: {registration_no}\n" +
				"Village: {village}\n" +
				"Members: {total_members}\n\n" +
				"Please keep this number handy at the venue.",
			IsActive: true,
		},
		{
			Name:  "Admin Notification",
			Stage: models.StageAdmin,
			Text: "New registration received.\n\n" +
				"No: {registration_no}\n" +
				"Name: {name}\n" +
				"Mobile: {mobile}\n" +
				"Village: {village}\n" +
				"Members: {total_members}\n\n" +
				"Total: {total_registrations} | Today: {today_registrations}",
			IsActive: true,
		},
		{
			Name:  "Housing Pass",
			Stage: models.StageBarcode,
			Text: "{name}, here is your housing pass for registration {registration_no}.\n" +
				"Show the barcode at the entry gate.",
			IsActive: true,
		},
		{
			Name:  "Change Request Info",
			Stage: models.StageChangeRequest,
			Text: "{name}, if any detail in registration {registration_no} is wrong,\n" +
				"reply to this message with the correction and our team will update it.",
			IsActive: true,
		},
	}
}

// Seed inserts the default templates for any stage the store does not have yet.
func Seed(ctx context.Context, store Store) error {
	for _, tmpl := range Defaults() {
		if _, err := store.GetByStage(ctx, tmpl.Stage); err == nil {
			continue
		}
		if err := store.Save(ctx, tmpl.Stage, tmpl.Name, tmpl.Text); err != nil {
			return err
		}
	}
	return nil
}
