package cli

import (
	"context"
	"os"

	"github.com/lskl-cc/souzou/internal/client/services"
)

// Edit patches a record interactively. Empty answers keep the current value.
func (a *App) Edit(ctx context.Context, id string) error {
	e, err := a.entities.Get(ctx, id)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	title, err := GetSimpleText(a.reader, "Title ["+e.Title+"] (empty = keep)", os.Stdout)
	if err != nil {
		return err
	}

	content, err := GetMultiline(a.reader, "Content (empty = keep)", os.Stdout)
	if err != nil {
		return err
	}

	p := services.UpdateEntityParams{}
	if title != "" {
		p.Title = &title
	}
	if content != "" {
		p.Content = &content
	}

	if _, err := a.entities.Update(ctx, id, p); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	printlnFn("Updated", id)
	return nil
}

// Delete removes a record. The change reaches the server on the next sync.
func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.entities.Delete(ctx, id); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Deleted", id)
	return nil
}
