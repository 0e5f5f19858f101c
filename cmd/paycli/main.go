// Command paycli pays for a storefront order from the terminal. It drives the
// same push-then-poll flow the web checkout uses, which makes it handy against
// a server running with MPESA_ENV=stub or the Daraja sandbox.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonshop/pkg/checkout"
	"salonshop/pkg/payment"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:           "paycli",
		Short:         "pay storefront orders with M-Pesa STK push",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if viper.GetBool("verbose") {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		},
	}

	payCmd = &cobra.Command{
		Use:   "pay",
		Short: "send an STK push for an order and wait for the outcome",
		RunE:  runPay,
	}

	statusCmd = &cobra.Command{
		Use:   "status <checkout-request-id>",
		Short: "ask the gateway once for the status of a push",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
)

func init() {
	viper.SetEnvPrefix("PAYCLI")
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("server", "http://localhost:8099", "storefront base URL")
	must(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "HTTP timeout per request")
	must(viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout")))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every poll")
	must(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))

	payCmd.Flags().String("order", "", "order id")
	payCmd.Flags().String("phone", "", "M-Pesa phone number")
	payCmd.Flags().String("amount", "", "amount in KES")
	payCmd.Flags().Duration("first-poll", checkout.DefaultFirstPollDelay, "delay before the first status poll")
	payCmd.Flags().Duration("interval", checkout.DefaultPollInterval, "delay between status polls")
	payCmd.Flags().Int("max-attempts", checkout.DefaultMaxAttempts, "polls before giving up")
	for _, f := range []string{"order", "phone", "amount"} {
		must(payCmd.MarkFlagRequired(f))
	}

	rootCmd.AddCommand(payCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func newClient() *checkout.HTTPClient {
	return checkout.NewHTTPClient(viper.GetString("server"), viper.GetDuration("timeout"))
}

func runPay(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	orderID, _ := flags.GetString("order")
	phone, _ := flags.GetString("phone")
	rawAmount, _ := flags.GetString("amount")
	firstPoll, _ := flags.GetDuration("first-poll")
	interval, _ := flags.GetDuration("interval")
	maxAttempts, _ := flags.GetInt("max-attempts")

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", rawAmount)
	}

	done := make(chan error, 1)
	c := checkout.New(newClient(), checkout.Options{
		FirstPollDelay: firstPoll,
		PollInterval:   interval,
		MaxAttempts:    maxAttempts,
		OnChange: func(s checkout.Snapshot) {
			if s.State != checkout.StateIdle {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", s.State, s.Message)
			}
		},
		OnSuccess: func(id string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paid, checkout request %s\n", id)
			done <- nil
		},
		OnError: func(msg string) { done <- errors.New(msg) },
	})
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !c.Initiate(ctx, phone, amount, orderID) {
		return <-done
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("cancelled")
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
	defer cancel()
	res, err := newClient().Query(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Status, res.Message)
	if res.ResultCode != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "result %s %s\n", res.ResultCode, res.ResultDesc)
	}
	if res.Status == payment.StatusSuccess {
		return nil
	}
	if res.Status.Terminal() {
		return fmt.Errorf("payment %s", res.Status)
	}
	return nil
}
