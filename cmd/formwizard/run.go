package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/internal/logging"
	"github.com/goliatone/go-formwizard/internal/prompt"
	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/credentials"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func newRunCmd(a *app) *cobra.Command {
	var discriminator string
	cmd := &cobra.Command{
		Use:   "run <kind>",
		Short: "Fill in and submit a wizard interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			reg, ok := catalog.Registry(args[0])
			if !ok {
				return fmt.Errorf("unknown wizard kind %q (try \"formwizard kinds\")", args[0])
			}
			enc, err := submission.ParseArrayEncoding(a.cfg.Payload.ArrayEncoding)
			if err != nil {
				return err
			}

			logger := logging.FromContext(cmd.Context())
			out := cmd.OutOrStdout()
			notifier := notify.Multi(terminalNotifier(out), notify.Logger{Logger: logger})
			creds := credentials.NewKeyProvider(a.credentialStore(), a.cfg.Auth.TokenKey)
			transport := submission.NewRestyTransport(resty.New(), a.cfg.API.Timeout)
			coordinator := submission.NewCoordinator(creds, transport,
				submission.WithBaseURL(a.cfg.API.BaseURL),
				submission.WithArrayEncoding(enc),
				submission.WithPrinter(i18n.New(a.cfg.Locale)),
				submission.WithNotifier(notifier),
				submission.WithLogger(logger),
			)

			opts := []wizard.Option{
				wizard.WithLocale(a.cfg.Locale),
				wizard.WithNotifier(notifier),
				wizard.WithLogger(logger),
				wizard.WithAttachmentOptions(attachment.WithPreviewConcurrency(a.cfg.Attachments.PreviewConcurrency)),
			}
			if discriminator != "" {
				opts = append(opts, wizard.WithDiscriminator(schema.Discriminator(discriminator)))
			}
			session, err := wizard.New(reg, coordinator, opts...)
			if err != nil {
				return err
			}
			defer session.Close()

			_, err = prompt.NewRunner(prompt.NewSurveyDriver(out), session).Run(cmd.Context())
			if errors.Is(err, failure.ErrAuthRequired) || errors.Is(err, failure.ErrAuthExpired) {
				return fmt.Errorf("%w; sign in with \"formwizard login --token <token>\" and run again", err)
			}
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Fprintln(out, "Cancelled")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&discriminator, "as", "a", "", "initial discriminator value, e.g. legal-agent")
	return cmd
}

func terminalNotifier(w io.Writer) notify.Notifier {
	return notify.Func(func(kind notify.Kind, message string) {
		marker := "i"
		switch kind {
		case notify.KindSuccess:
			marker = "+"
		case notify.KindError:
			marker = "!"
		}
		fmt.Fprintf(w, "[%s] %s\n", marker, message)
	})
}
