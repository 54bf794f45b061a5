package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mysomeid/sponsor/src/sponsor"
	"github.com/mysomeid/sponsor/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	mintUrl      string
	mintAccount  string
	mintPlatform uint8
	mintPrivate  string
)

func init() {
	mintCmd.Flags().StringVar(&mintUrl, "url", "http://localhost:8080", "sponsor REST API url")
	mintCmd.Flags().StringVar(&mintAccount, "account", "", "address of the token owner")
	mintCmd.Flags().Uint8Var(&mintPlatform, "platform", 0, "platform the token is issued for")
	mintCmd.Flags().StringVar(&mintPrivate, "private", "{}", "private token data, JSON")
	_ = mintCmd.MarkFlagRequired("account")

	RootCmd.AddCommand(mintCmd)
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Request a sponsored mint from a running relay",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("mint-cmd")

		if !json.Valid([]byte(mintPrivate)) {
			return errors.New("private data isn't valid JSON")
		}

		resp, err := resty.New().
			SetTimeout(time.Minute).
			SetBaseURL(mintUrl).
			R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetBody(&sponsor.MintBody{
				Account:  mintAccount,
				Platform: mintPlatform,
				Private:  json.RawMessage(mintPrivate),
			}).
			SetResult(&sponsor.MintResponse{}).
			Post("/v1/mint")
		if err != nil {
			return
		}

		if !resp.IsSuccess() {
			log.WithField("status", resp.StatusCode()).WithField("body", resp.String()).Error("Mint rejected")
			return fmt.Errorf("mint rejected with status %d", resp.StatusCode())
		}

		out, ok := resp.Result().(*sponsor.MintResponse)
		if !ok {
			return errors.New("failed to parse response")
		}

		return json.NewEncoder(os.Stdout).Encode(out)
	},
}
