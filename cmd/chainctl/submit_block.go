package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koinos-go/chain/internal/crypto"
	"github.com/koinos-go/chain/internal/protocol"
)

func submitBlockCmd() *cobra.Command {
	var (
		seed         string
		height       uint64
		previousHex  string
		timestamp    uint64
	)
	cmd := &cobra.Command{
		Use:   "submit-block",
		Short: "build, sign, and submit an empty block extending previous",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == "" {
				return fmt.Errorf("--seed is required")
			}

			ctrl, err := openController()
			if err != nil {
				return err
			}

			previous := ctrl.Root()
			if previousHex != "" {
				raw, err := hex.DecodeString(previousHex)
				if err != nil {
					return fmt.Errorf("decode --previous: %w", err)
				}
				previous, err = crypto.Decode(raw)
				if err != nil {
					return fmt.Errorf("parse --previous as a multihash: %w", err)
				}
			}

			key := crypto.PrivateKeyFromSeed(seed)
			root, err := protocol.TransactionMerkleRoot(nil)
			if err != nil {
				return fmt.Errorf("compute transaction root: %w", err)
			}
			header := protocol.BlockHeader{
				Height:          height,
				Timestamp:       timestamp,
				Previous:        previous,
				TransactionRoot: root,
				Signer:          crypto.DeriveAddress(key),
			}
			id, err := header.ID()
			if err != nil {
				return fmt.Errorf("compute block id: %w", err)
			}
			b := &protocol.Block{Header: header, Signature: key.Sign(id.Bytes())}

			receipt, err := ctrl.SubmitBlock(b, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted block %s at height %d\n", receipt.ID, receipt.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "deterministic private key seed for the block signer")
	cmd.Flags().Uint64Var(&height, "height", 1, "block height")
	cmd.Flags().StringVar(&previousHex, "previous", "", "hex-encoded multihash of the previous block id (empty for genesis)")
	cmd.Flags().Uint64Var(&timestamp, "timestamp", 0, "block timestamp in milliseconds")
	return cmd
}
