package cmd

import (
	"os"

	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/aptosclient"
)

// fileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// Shared Helper function. Create an aptos client bound to one module deployment.
func SetupAptosClient(chainName string, network string, moduleAddr string, privKeyHex string) (*aptosclient.AptosClient, error) {
	account, err := aptosclient.NewAccountFromHex(privKeyHex)
	if err != nil {
		logger.Fatalf("failed to create aptos account: %v", err)
		return nil, err
	}
	client, err := aptosclient.NewAptosClient(&aptosclient.AptosClientConfig{
		ChainName:     agreement.ChainId(chainName),
		Network:       network,
		ModuleAddress: moduleAddr,
	}, account)
	if err != nil {
		logger.Fatalf("failed to create aptos client: %v", err)
		return nil, err
	}
	return client, nil
}
