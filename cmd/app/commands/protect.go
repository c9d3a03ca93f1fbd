package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/protect/protection"
)

// RunProtect tokenizes a sensitive value under the given protection policy
// and writes the protected value to the output. The payload itself is never
// logged, only its length.
//
// Requirements: PROTECT_BASE_URL must point at a reachable protection API.
func RunProtect(
	ctx context.Context,
	client protection.Protector,
	logger *slog.Logger,
	policyName string,
	data string,
	format string,
	io IOTuple,
) error {
	payload, err := readData(data, io)
	if err != nil {
		return err
	}

	logger.Info("protecting payload",
		slog.String("policy_name", policyName),
		slog.Int("data_len", len(payload)),
	)

	result, err := client.Protect(ctx, policyName, payload)
	if err != nil {
		return fmt.Errorf("failed to protect data: %w", err)
	}

	outputResult("protected_data", result.Value, format, io.Writer)

	logger.Info("payload protected successfully",
		slog.String("policy_name", policyName),
		slog.Int("protected_data_len", len(result.Value)),
	)

	return nil
}
