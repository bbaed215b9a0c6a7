package prompt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Review menu entries.
const (
	ActionSubmit = "Submit"
	ActionEdit   = "Edit answers"
	ActionCancel = "Cancel"
)

var reviewActions = []string{ActionSubmit, ActionEdit, ActionCancel}

// Runner asks for every applicable field of a session step by step and
// submits it from review.
type Runner struct {
	driver  Driver
	session *wizard.Session
}

// NewRunner binds driver to session.
func NewRunner(driver Driver, session *wizard.Session) *Runner {
	return &Runner{driver: driver, session: session}
}

// Run drives the session until it is submitted, the user cancels, or the
// submission needs authentication.
func (r *Runner) Run(ctx context.Context) (submission.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return submission.Result{}, err
		}
		switch state := r.session.State(); state {
		case wizard.StateEditing, wizard.StateFailed:
			if err := r.editStep(ctx); err != nil {
				return submission.Result{}, err
			}
		case wizard.StateReviewing:
			result, done, err := r.review(ctx)
			if done || err != nil {
				return result, err
			}
		case wizard.StateSucceeded:
			result, _ := r.session.LastResult()
			return result, nil
		default:
			return submission.Result{}, fmt.Errorf("prompt: cannot drive session in state %s", state)
		}
	}
}

func (r *Runner) editStep(ctx context.Context) error {
	def := r.session.Definition()
	step := r.session.CurrentStep()
	header := fmt.Sprintf("[%d/%d] %s", r.session.Step()+1, def.StepCount(), firstNonEmpty(step.Title, step.ID))
	if err := r.driver.Info(ctx, header); err != nil {
		return err
	}
	if err := r.showErrors(ctx, def, r.session.Errors(), r.session.FormErrors()); err != nil {
		return err
	}

	for _, name := range step.Fields {
		if !r.session.Applicable(name) {
			continue
		}
		rule, _ := def.Rule(name)
		if err := r.askField(ctx, rule); err != nil {
			return err
		}
		if r.session.Definition().Discriminator != def.Discriminator {
			// The schema changed under us; restart from the clamped step.
			return nil
		}
	}

	err := r.session.Next()
	var fail *failure.Error
	if errors.As(err, &fail) && fail.Kind == failure.KindClientValidation {
		return nil
	}
	return err
}

func (r *Runner) askField(ctx context.Context, rule schema.FieldRule) error {
	current, _ := r.session.Values().Get(rule.Name)
	message := rule.DisplayName()
	if rule.Required {
		message += " *"
	}

	switch rule.Type {
	case schema.FieldTypeEnum:
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      rule.Options,
			DefaultIndex: slices.Index(rule.Options, fmt.Sprint(current)),
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(rule.Options) {
			return nil
		}
		return r.session.Set(rule.Name, rule.Options[idx])

	case schema.FieldTypeBoolean:
		value, _ := current.(bool)
		ok, err := r.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: value})
		if err != nil {
			return err
		}
		return r.session.Set(rule.Name, ok)

	case schema.FieldTypeFileSet:
		return r.askFiles(ctx, rule, message)
	}

	cfg := InputConfig{Message: message, Default: scalar(current)}
	ask := r.driver.Input
	if strings.Contains(rule.Name, "password") {
		ask = r.driver.Password
	}
	text, err := ask(ctx, cfg)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" && current == nil {
		return nil
	}
	return r.session.Set(rule.Name, text)
}

func (r *Runner) askFiles(ctx context.Context, rule schema.FieldRule, message string) error {
	attached := r.session.Files(rule.Name)
	help := "Comma separated file paths"
	if len(attached) > 0 {
		names := make([]string, 0, len(attached))
		for _, a := range attached {
			names = append(names, a.Name)
		}
		help = "Attached: " + strings.Join(names, ", ")
	}
	raw, err := r.driver.Input(ctx, InputConfig{Message: message, Help: help})
	if err != nil {
		return err
	}
	var sources []attachment.Source
	for _, path := range strings.Split(raw, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		src, err := attachment.FromPath(path)
		if err != nil {
			if err := r.driver.Info(ctx, fmt.Sprintf("  ! %s: %v", path, err)); err != nil {
				return err
			}
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil
	}
	_, err = r.session.AddFiles(rule.Name, sources...)
	return err
}

func (r *Runner) review(ctx context.Context) (submission.Result, bool, error) {
	def := r.session.Definition()
	values := r.session.Values()
	if err := r.driver.Info(ctx, firstNonEmpty(def.Title, def.Kind)); err != nil {
		return submission.Result{}, false, err
	}
	for _, name := range def.Fields() {
		if !r.session.Applicable(name) {
			continue
		}
		rule, _ := def.Rule(name)
		value, _ := values.Get(name)
		if err := r.driver.Info(ctx, fmt.Sprintf("  %s: %s", rule.DisplayName(), display(rule, value))); err != nil {
			return submission.Result{}, false, err
		}
	}

	idx, err := r.driver.Select(ctx, SelectConfig{Message: "Ready to submit?", Options: reviewActions})
	if err != nil {
		return submission.Result{}, false, err
	}
	switch idx {
	case 1:
		return submission.Result{}, false, r.session.GoTo(0)
	case 2:
		return submission.Result{}, true, ErrAborted
	}

	result, err := r.session.Submit(ctx)
	if err == nil {
		msg := "Submitted"
		if result.ID != "" {
			msg += " (id " + result.ID + ")"
		}
		return result, true, r.driver.Info(ctx, msg)
	}
	if r.session.State() == wizard.StateAwaitingAuth {
		return result, true, err
	}
	// Field errors are shown when the offending step is asked again.
	if result.Err != nil && !result.Err.FieldAddressable() {
		if infoErr := r.driver.Info(ctx, "  ! "+result.Err.Message); infoErr != nil {
			return result, true, infoErr
		}
	}
	return result, false, nil
}

func (r *Runner) showErrors(ctx context.Context, def schema.WizardDefinition, fields map[string]string, form []string) error {
	for _, msg := range form {
		if err := r.driver.Info(ctx, "  ! "+msg); err != nil {
			return err
		}
	}
	for _, name := range def.Fields() {
		msg, ok := fields[name]
		if !ok {
			continue
		}
		rule, _ := def.Rule(name)
		if err := r.driver.Info(ctx, fmt.Sprintf("  ! %s: %s", rule.DisplayName(), msg)); err != nil {
			return err
		}
	}
	return nil
}

func display(rule schema.FieldRule, value any) string {
	switch {
	case rule.Type == schema.FieldTypeFileSet:
		files := attachment.List(value)
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}
		return strings.Join(names, ", ")
	case strings.Contains(rule.Name, "password") && value != nil:
		return "********"
	}
	return scalar(value)
}

func scalar(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
