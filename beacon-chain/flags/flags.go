// Package flags defines the command-line surface of the beacon node.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// DataDirFlag is the directory for the node database.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases",
		Value: "./beacondata",
	}
	// VerbosityFlag selects the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// ClearDB removes any existing database before starting.
	ClearDB = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Clears any previously stored data at the data directory",
	}
	// StorageModeFlag selects how much finalized data is retained.
	StorageModeFlag = &cli.StringFlag{
		Name:  "storage-mode",
		Usage: "Finalized data retention, one of: archive, prune",
		Value: "prune",
	}
	// MinimalConfigFlag switches to the minimal spec constants.
	MinimalConfigFlag = &cli.BoolFlag{
		Name:  "minimal-config",
		Usage: "Uses minimal config with parameters as defined in the spec",
	}

	// P2PEnabled toggles the networking stack.
	P2PEnabled = &cli.BoolFlag{
		Name:  "p2p-enabled",
		Usage: "Enables the peer-to-peer networking stack",
		Value: true,
	}
	// P2PIP is the local listening interface.
	P2PIP = &cli.StringFlag{
		Name:  "p2p-local-ip",
		Usage: "The local ip address to listen for incoming data",
		Value: "0.0.0.0",
	}
	// P2PHostIP is the address advertised to peers.
	P2PHostIP = &cli.StringFlag{
		Name:  "p2p-host-ip",
		Usage: "The IP address advertised by libp2p. This may be used to advertise an external IP",
	}
	// P2PTCPPort is the local listening port.
	P2PTCPPort = &cli.IntFlag{
		Name:  "p2p-tcp-port",
		Usage: "The port used by libp2p",
		Value: 13000,
	}
	// P2PAdvertisedPort is the port advertised to peers.
	P2PAdvertisedPort = &cli.IntFlag{
		Name:  "p2p-advertised-port",
		Usage: "The port advertised to peers when it differs from the listening port",
	}
	// StaticPeers are peers dialed unconditionally.
	StaticPeers = &cli.StringSliceFlag{
		Name:  "peer",
		Usage: "Connect with this peer. This flag may be used multiple times",
	}
	// DiscoveryEnabled toggles peer discovery.
	DiscoveryEnabled = &cli.BoolFlag{
		Name:  "p2p-discovery",
		Usage: "Enables peer discovery",
		Value: true,
	}
	// BootstrapNode is the discovery entry point.
	BootstrapNode = &cli.StringSliceFlag{
		Name:  "bootstrap-node",
		Usage: "The address of bootstrap node. Beacon node will connect for peer discovery via DHT",
	}
	// MinPeers is the lower bound of the peer count.
	MinPeers = &cli.IntFlag{
		Name:  "minimum-peers",
		Usage: "The minimum number of peers the node tries to keep connected",
		Value: 5,
	}
	// MaxPeers is the upper bound of the peer count.
	MaxPeers = &cli.IntFlag{
		Name:  "p2p-max-peers",
		Usage: "The max number of p2p peers to maintain",
		Value: 45,
	}
	// P2PPrivKey is the networking identity key file.
	P2PPrivKey = &cli.StringFlag{
		Name:  "p2p-priv-key",
		Usage: "The file containing the private key to use in communications with other peers",
	}
	// P2PSnappy toggles snappy compression on the wire.
	P2PSnappy = &cli.BoolFlag{
		Name:  "p2p-snappy",
		Usage: "Enables snappy compression for all p2p messages",
		Value: true,
	}

	// StartupTargetPeers is the peer threshold for declaring in-sync at boot.
	StartupTargetPeers = &cli.IntFlag{
		Name:  "startup-target-peers",
		Usage: "The number of connected peers required to declare the node in sync at startup",
		Value: 5,
	}
	// StartupTimeout bounds the wait for the startup peer target.
	StartupTimeout = &cli.IntFlag{
		Name:  "startup-timeout",
		Usage: "Seconds to wait for the startup peer target before any connected peer is enough",
		Value: 60,
	}

	// Eth1Enabled toggles the execution-layer follower.
	Eth1Enabled = &cli.BoolFlag{
		Name:  "eth1-enabled",
		Usage: "Enables the Eth1 chain follower",
		Value: true,
	}
	// Eth1Endpoint is the execution-layer RPC address.
	Eth1Endpoint = &cli.StringFlag{
		Name:  "eth1-endpoint",
		Usage: "An eth1 web3 provider string http endpoint",
		Value: "https://goerli.prylabs.net",
	}

	// InteropMode enables deterministic local genesis.
	InteropMode = &cli.BoolFlag{
		Name:  "interop",
		Usage: "Starts the node from a deterministically generated genesis state",
	}
	// InteropGenesisTime is the genesis time of the generated state.
	InteropGenesisTime = &cli.Uint64Flag{
		Name:  "interop-genesis-time",
		Usage: "Specifies the genesis time of the generated genesis state",
	}
	// InteropNumValidators is the validator count of the generated state.
	InteropNumValidators = &cli.Uint64Flag{
		Name:  "interop-num-validators",
		Usage: "Specifies the number of validators in the generated genesis state",
	}
	// GenesisStatePath is an SSZ-serialized genesis state file.
	GenesisStatePath = &cli.StringFlag{
		Name:  "genesis-state",
		Usage: "Load a genesis state from an ssz file",
	}
)
