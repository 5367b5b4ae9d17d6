package cmd

import (
	"context"
	"encoding/json"
	"io"

	"loyaltycast/config"
	"loyaltycast/service"
)

// RunBirthday executes the birthday job once and writes the result to out as JSON
func RunBirthday(ctx context.Context, opts service.BirthdayRunOptions, out io.Writer) error {
	app, err := Build(ctx, config.Get())
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Birthday.RunBirthdayJob(ctx, opts)
	if result != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}
