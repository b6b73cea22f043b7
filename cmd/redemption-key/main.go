// Package main provides a one-shot utility for redemption token key generation.
//
// It emits the asymmetric keypair used to sign and verify reward redemption
// tokens.
package main

import (
	"os"

	"github.com/selo-app/selo/internal/platform/config"
	"github.com/selo-app/selo/internal/tools/redemptionkey"
)

func main() {
	if err := redemptionkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate redemption token key: %v", err)
	}
}
