package cli

import (
	"context"
	"fmt"
)

// List prints every live record, one per line.
func (a *App) List(ctx context.Context) error {
	entities, err := a.entities.Fetch(ctx)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if len(entities) == 0 {
		printlnFn("No records yet. Type 'add' to create one.")
		return nil
	}

	for _, e := range entities {
		printlnFn(fmt.Sprintf("%s  [%s]  %s", e.ID, e.Type, e.Title))
	}
	return nil
}

// Show prints a single record in full.
func (a *App) Show(ctx context.Context, id string) error {
	e, err := a.entities.Get(ctx, id)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	printlnFn("ID:      ", e.ID)
	printlnFn("Type:    ", string(e.Type))
	printlnFn("Title:   ", e.Title)
	if e.Parent != nil {
		printlnFn("Parent:  ", *e.Parent)
	}
	if len(e.Tags) > 0 {
		printlnFn("Tags:    ", fmt.Sprint(e.Tags))
	}
	printlnFn("Updated: ", e.UpdatedAt)
	printlnFn("Rev:     ", fmt.Sprint(e.Rev))
	if e.Content != "" {
		printlnFn("")
		printlnFn(e.Content)
	}
	return nil
}
