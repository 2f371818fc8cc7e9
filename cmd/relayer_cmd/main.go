package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/crosslock-io/bridge-go/cmd"
	"github.com/crosslock-io/bridge-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Relayer server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Relayer server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	rsc := PrepareRelayerServerConfig()
	if rsc == nil {
		fmt.Printf("Error loading relayer server configuration\n")
		return
	}

	fmt.Println("Starting relayer server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartRelayerServerAndWait(rsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareRelayerServerConfig reads configuration variables and returns a RelayerServerConfig.
func PrepareRelayerServerConfig() *cmd.RelayerServerConfig {
	return &cmd.RelayerServerConfig{
		// chain pairing
		ChainAName:   viper.GetString("CHAIN_A_NAME"),
		ChainBName:   viper.GetString("CHAIN_B_NAME"),
		ChainADigest: viper.GetString("CHAIN_A_DIGEST"),
		ChainBDigest: viper.GetString("CHAIN_B_DIGEST"),
		// bridge accounts
		OwnerAddr:   viper.GetString("OWNER_ADDR"),
		RelayerAddr: viper.GetString("RELAYER_ADDR"),
		EscrowAddr:  viper.GetString("ESCROW_ADDR"),
		EscrowFund:  viper.GetUint64("ESCROW_FUND"),
		// aptos side
		AptosNetwork:    viper.GetString("APTOS_NETWORK"),
		AptosModuleAddr: viper.GetString("APTOS_MODULE_ADDR"),
		AptosPrivKey:    viper.GetString("APTOS_CORE_ACCOUNT_PRIV"),
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// relayer side
		PollIntervalSec: viper.GetInt64("POLL_INTERVAL_SEC"),
		LookBack:        viper.GetInt64("LOOK_BACK"),
		SecretDir:       viper.GetString("SECRET_DIR"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
