package cli

import (
	"context"
	"os"

	"github.com/lskl-cc/souzou/internal/client/services"
	"github.com/lskl-cc/souzou/internal/models"
)

// Add creates a record interactively. An empty type defaults to "note".
func (a *App) Add(ctx context.Context) error {
	kind, err := GetSimpleText(a.reader, "Type (note, template, media, view, widget, kanban, calendar, canvas; empty = note)", os.Stdout)
	if err != nil {
		return err
	}

	title, err := GetSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		return err
	}

	content, err := GetMultiline(a.reader, "Content", os.Stdout)
	if err != nil {
		return err
	}

	e, err := a.entities.Create(ctx, services.CreateEntityParams{
		Type:    models.EntityType(kind),
		Title:   title,
		Content: content,
	})
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	printlnFn("Created", e.ID)
	return nil
}
