package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ordinalchain/ordinal/pkg/account"
	"github.com/ordinalchain/ordinal/pkg/config"
	"github.com/ordinalchain/ordinal/pkg/crypto"
	"github.com/ordinalchain/ordinal/pkg/genesis"
	"github.com/ordinalchain/ordinal/pkg/log"
	"github.com/ordinalchain/ordinal/pkg/runtime"
	"github.com/ordinalchain/ordinal/pkg/types"
)

const defaultShutdownTimeout = 5 * time.Second

// RootCmd is the ordinal node CLI: init a home directory, manage keys and
// genesis, start the node, and query local account state.
var RootCmd = &cobra.Command{
	Use:   "ordinal",
	Short: "ordinal - a Byzantine-fault-tolerant proof-of-stake chain node",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ordinal node")
	},
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ordinal"
	}
	return filepath.Join(home, ".ordinal")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new node home directory",
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := cmd.Flags().GetString("home")
		if err := os.MkdirAll(filepath.Join(home, "config"), 0o700); err != nil {
			fmt.Println("failed to create home:", err)
			os.Exit(1)
		}
		cfg := config.DefaultConfig()
		cfg.HomeDir = home
		cfgPath := filepath.Join(home, "config", "config.json")
		if err := config.Save(cfgPath, cfg); err != nil {
			fmt.Println("failed to save config:", err)
			os.Exit(1)
		}
		gen := genesis.Default()
		genPath := filepath.Join(home, "config", "genesis.json")
		if err := gen.ToFile(genPath); err != nil {
			fmt.Println("failed to save genesis:", err)
			os.Exit(1)
		}
		fmt.Println("initialized node at", home)
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage Ed25519 keys",
}

var keysAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Generate and save a new Ed25519 keypair",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := cmd.Flags().GetString("home")
		seedHex, _ := cmd.Flags().GetString("seed")
		keyDir := filepath.Join(home, "config", "keys")
		if err := os.MkdirAll(keyDir, 0o700); err != nil {
			fmt.Println("failed to create key dir:", err)
			os.Exit(1)
		}
		var kp *crypto.Ed25519KeyPair
		var err error
		if seedHex != "" {
			seed, decodeErr := hex.DecodeString(seedHex)
			if decodeErr != nil {
				fmt.Println("invalid seed:", decodeErr)
				os.Exit(1)
			}
			kp, err = crypto.GenerateEd25519FromSeed(seed)
		} else {
			kp, err = crypto.GenerateEd25519()
		}
		if err != nil {
			fmt.Println("failed to generate key:", err)
			os.Exit(1)
		}
		path := filepath.Join(keyDir, args[0]+".json")
		if err := crypto.SaveEd25519(path, kp); err != nil {
			fmt.Println("failed to save key:", err)
			os.Exit(1)
		}
		addr, _ := crypto.AddressFromPubKey(kp.PublicKey)
		fmt.Printf("created key %s pubkey %x address %s\n", args[0], []byte(kp.PublicKey), addr)
	},
}

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Manage the genesis file",
}

var genesisAddValidatorCmd = &cobra.Command{
	Use:   "add-validator [pubkey_hex] [stake] [commission_bps]",
	Short: "Append a validator entry to the genesis file and recompute its hash",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := cmd.Flags().GetString("home")
		genPath := filepath.Join(home, "config", "genesis.json")
		gen, err := genesis.FromFile(genPath)
		if err != nil {
			fmt.Println("failed to load genesis:", err)
			os.Exit(1)
		}
		stake, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("invalid stake:", err)
			os.Exit(1)
		}
		commission, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			fmt.Println("invalid commission_bps:", err)
			os.Exit(1)
		}
		gen.Validators = append(gen.Validators, genesis.Validator{
			PubKey:            args[0],
			InitialStake:      stake,
			CommissionRateBps: uint32(commission),
		})
		if err := gen.ToFile(genPath); err != nil {
			fmt.Println("failed to save genesis:", err)
			os.Exit(1)
		}
		fmt.Println("added validator", args[0], "to", genPath)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := cmd.Flags().GetString("home")
		cfgPath := filepath.Join(home, "config", "config.json")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Println("failed to load config:", err)
			os.Exit(1)
		}
		cfg.HomeDir = home

		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.P2P.ListenAddr = listen
		}
		if rpcPort, _ := cmd.Flags().GetUint16("rpc-port"); rpcPort != 0 {
			cfg.RPC.Port = rpcPort
		}
		if peers, _ := cmd.Flags().GetStringSlice("peers"); len(peers) > 0 {
			cfg.P2P.BootstrapPeers = peers
		}
		genFlag, _ := cmd.Flags().GetString("genesis")
		if genFlag == "" {
			genFlag = filepath.Join(home, "config", "genesis.json")
		}
		gen, err := genesis.FromFile(genFlag)
		if err != nil {
			fmt.Println("failed to load genesis:", err)
			os.Exit(1)
		}

		logger := log.Stdout(cfg.Moniker)
		reg := prometheus.NewRegistry()
		node, err := runtime.New(cfg, gen, logger, reg)
		if err != nil {
			fmt.Println("failed to construct node:", err)
			os.Exit(1)
		}

		if keyPath, _ := cmd.Flags().GetString("validator-key"); keyPath != "" {
			kp, err := crypto.LoadEd25519(keyPath)
			if err != nil {
				fmt.Println("failed to load validator key:", err)
				os.Exit(1)
			}
			if err := node.EnableValidator(kp.PrivateKey); err != nil {
				fmt.Println("failed to enable validator:", err)
				os.Exit(1)
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := node.Start(ctx, reg); err != nil {
			fmt.Println("failed to start node:", err)
			os.Exit(1)
		}

		<-ctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer stopCancel()
		if err := node.Stop(stopCtx); err != nil {
			fmt.Println("error during shutdown:", err)
			os.Exit(1)
		}
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query local node state",
}

var queryAccountCmd = &cobra.Command{
	Use:   "account [pubkey_hex]",
	Short: "Query an account's balance and nonce from the on-disk snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := cmd.Flags().GetString("home")
		snapshotPath := filepath.Join(home, "state.json")
		db, err := account.LoadSnapshot(snapshotPath)
		if err != nil {
			fmt.Println("failed to load account snapshot:", err)
			os.Exit(1)
		}
		raw, err := hex.DecodeString(args[0])
		if err != nil {
			fmt.Println("invalid pubkey:", err)
			os.Exit(1)
		}
		pub, err := types.PublicKeyFromBytes(raw)
		if err != nil {
			fmt.Println("invalid pubkey:", err)
			os.Exit(1)
		}
		state, ok := db.GetAccount(pub)
		if !ok {
			fmt.Println("account not found")
			return
		}
		fmt.Printf("pubkey=%s balance=%d nonce=%d\n", args[0], state.Balance, state.Nonce)
	},
}

func init() {
	RootCmd.PersistentFlags().String("home", defaultHome(), "node home directory")
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(keysCmd)
	RootCmd.AddCommand(genesisCmd)
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(queryCmd)

	keysCmd.AddCommand(keysAddCmd)
	keysAddCmd.Flags().String("seed", "", "hex-encoded 32-byte seed for a reproducible keypair")

	genesisCmd.AddCommand(genesisAddValidatorCmd)

	startCmd.Flags().String("genesis", "", "path to genesis.json (default <home>/config/genesis.json)")
	startCmd.Flags().String("listen", "", "libp2p listen multiaddr, overrides config.json")
	startCmd.Flags().Uint16("rpc-port", 0, "RPC/metrics port, overrides config.json")
	startCmd.Flags().String("validator-key", "", "path to an Ed25519 validator key file")
	startCmd.Flags().StringSlice("peers", nil, "bootstrap peer multiaddrs, overrides config.json")

	queryCmd.AddCommand(queryAccountCmd)
}
