package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/protect/protection"
)

// RunReveal exchanges a protected value for the original under the given
// protection policy and writes the original to the output. The revealed
// payload is never logged, only its length.
//
// Requirements: PROTECT_BASE_URL must point at a reachable protection API.
func RunReveal(
	ctx context.Context,
	client protection.Protector,
	logger *slog.Logger,
	policyName string,
	protectedData string,
	format string,
	io IOTuple,
) error {
	token, err := readData(protectedData, io)
	if err != nil {
		return err
	}

	logger.Info("revealing payload",
		slog.String("policy_name", policyName),
		slog.Int("protected_data_len", len(token)),
	)

	result, err := client.Reveal(ctx, policyName, token)
	if err != nil {
		return fmt.Errorf("failed to reveal data: %w", err)
	}

	outputResult("data", result.Value, format, io.Writer)

	logger.Info("payload revealed successfully",
		slog.String("policy_name", policyName),
		slog.Int("data_len", len(result.Value)),
	)

	return nil
}
