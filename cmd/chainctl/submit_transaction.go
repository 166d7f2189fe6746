package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
)

func submitTransactionCmd() *cobra.Command {
	var (
		seed          string
		bytecodeFile  string
		rcLimit       uint64
		nonce         uint64
	)
	cmd := &cobra.Command{
		Use:   "submit-transaction",
		Short: "build, sign, and submit an upload-contract transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == "" || bytecodeFile == "" {
				return fmt.Errorf("--seed and --bytecode-file are required")
			}
			bytecode, err := os.ReadFile(bytecodeFile)
			if err != nil {
				return fmt.Errorf("read bytecode file: %w", err)
			}

			payer := crypto.PrivateKeyFromSeed(seed)
			addr := crypto.DeriveAddress(payer)

			trx := &protocol.Transaction{
				Operations: []protocol.Operation{{
					Kind:       protocol.OpUploadContract,
					ContractID: addr,
					Bytecode:   bytecode,
				}},
				RCLimit: rcLimit,
				Nonce:   nonce,
				Payer:   addr,
			}
			id, err := trx.ID()
			if err != nil {
				return fmt.Errorf("transaction id: %w", err)
			}
			trx.Signature = payer.Sign(id.Bytes())

			ctrl, err := openController()
			if err != nil {
				return err
			}
			if err := ctrl.SubmitTransaction(trx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted transaction %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "deterministic private key seed for the payer")
	cmd.Flags().StringVar(&bytecodeFile, "bytecode-file", "", "path to the contract bytecode to upload")
	cmd.Flags().Uint64Var(&rcLimit, "rc-limit", 1000, "resource-credit limit for the transaction")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "payer account nonce")
	return cmd
}
