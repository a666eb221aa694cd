package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/lskl-cc/souzou/internal/client/services"
)

// Tags lists every live tag.
func (a *App) Tags(ctx context.Context) error {
	tags, err := a.tags.Fetch(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if len(tags) == 0 {
		printlnFn("No tags yet. Type 'addtag' to create one.")
		return nil
	}

	for _, t := range tags {
		line := fmt.Sprintf("%s  %s", t.ID, t.Name)
		if t.Color != "" {
			line += "  (" + t.Color + ")"
		}
		printlnFn(line)
	}
	return nil
}

// AddTag creates a tag interactively.
func (a *App) AddTag(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Name", os.Stdout)
	if err != nil {
		return err
	}

	color, err := GetSimpleText(a.reader, "Color (empty = none)", os.Stdout)
	if err != nil {
		return err
	}

	t, err := a.tags.Create(ctx, services.CreateTagParams{Name: name, Color: color})
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	printlnFn("Created", t.ID)
	return nil
}

// DeleteTag removes a tag.
func (a *App) DeleteTag(ctx context.Context, id string) error {
	if err := a.tags.Delete(ctx, id); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Deleted", id)
	return nil
}
