package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recipebox/internal/app"
	"recipebox/internal/otp"
	"recipebox/internal/services"
	"recipebox/internal/tui"
)

var (
	verifyEmail   string
	verifyPurpose string
	verifySend    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Enter a verification code in the terminal",
	Long: `Opens the code screen for an email address.

  --purpose email   verify the account email (use --send to mail a new code)
  --purpose reset   mail a reset code, verify it, then set a new password`,
	Example: `  recipebox verify --email cook@example.com --send
  recipebox verify --email cook@example.com --purpose reset`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyEmail, "email", "e", "", "account email")
	verifyCmd.Flags().StringVarP(&verifyPurpose, "purpose", "p", "email", "email or reset")
	verifyCmd.Flags().BoolVar(&verifySend, "send", false, "ask for a fresh code first (email purpose)")
	_ = verifyCmd.MarkFlagRequired("email")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	purpose, err := otp.ParsePurpose(verifyPurpose)
	if err != nil {
		return err
	}

	core, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	var flow *services.Flow
	switch {
	case purpose == otp.PurposeForgotPassword:
		flow, err = core.Resets.RequestReset(ctx, verifyEmail)
	case verifySend:
		flow, err = core.Auth.ResumeVerification(ctx, verifyEmail)
	default:
		flow, err = core.Flows.Start(purpose, verifyEmail)
	}
	if err != nil {
		return err
	}

	res, err := tui.Run(ctx, flow.Session, flow.Email, tui.Options{
		AutoSubmit:     true,
		AskNewPassword: purpose == otp.PurposeForgotPassword,
		CheckPassword: func(pw string) error {
			return services.ValidateNewPassword(pw, pw)
		},
	})
	if err != nil {
		return err
	}
	if res.Cancelled {
		logger.Info("verification cancelled", zap.String("status", string(res.Status.Kind)))
		return nil
	}

	out := cmd.OutOrStdout()
	switch res.Status.Kind {
	case otp.StatusVerifiedEmail:
		fmt.Fprintln(out, "Email verified. You can sign in now.")
	case otp.StatusVerifiedReset:
		if err := core.Resets.ResetPassword(ctx, flow.ID, res.NewPassword, res.NewPassword); err != nil {
			return fmt.Errorf("reset password: %w", err)
		}
		fmt.Fprintln(out, "Password updated. Sign in with your new password.")
	}
	return nil
}
