// Interactive user tool against a Move-side bridge deployment.
// It drives the htlc_bridge entry functions from the command line:
// generate a secret, initiate a swap, withdraw with the preimage, refund.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/spf13/viper"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/aptosclient"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/htlc"
)

func logInfo(message string) {
	fmt.Printf("\x1b[36m%s\x1b[0m\n", message)
}

func logSuccess(message string) {
	fmt.Printf("\x1b[32m%s\x1b[0m\n", message)
}

func logError(message string) {
	fmt.Printf("\x1b[31m%s\x1b[0m\n", message)
}

func printMainMenu() {
	fmt.Println("\n===== HTLC BRIDGE USER TOOL =====")
	fmt.Println("1) Generate secret + hash")
	fmt.Println("2) Initiate swap")
	fmt.Println("3) Withdraw with preimage")
	fmt.Println("4) Refund expired lock")
	fmt.Println("5) Show recent bridge events")
	fmt.Println("0) Quit")
	fmt.Print("Enter option: ")
}

func main() {
	configFile := "./bridge_user.yaml"
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		logError(fmt.Sprintf("Failed to read config file %s: %v", configFile, err))
		os.Exit(1)
	}

	account, err := aptosclient.NewAccountFromHex(viper.GetString("USER_ACCOUNT_PRIV"))
	if err != nil {
		logError(fmt.Sprintf("Failed to load user account: %v", err))
		os.Exit(1)
	}
	accountAddr := account.AccountAddress()
	logSuccess(fmt.Sprintf("Account loaded: %s", accountAddr.String()))

	client, err := aptosclient.NewAptosClient(&aptosclient.AptosClientConfig{
		ChainName:     agreement.ChainId(viper.GetString("CHAIN_NAME")),
		Network:       viper.GetString("APTOS_NETWORK"),
		ModuleAddress: viper.GetString("APTOS_MODULE_ADDR"),
	}, account)
	if err != nil {
		logError(fmt.Sprintf("Failed to create client: %v", err))
		os.Exit(1)
	}
	logSuccess("Connected to Aptos network")

	reader := bufio.NewReader(os.Stdin)
	for {
		printMainMenu()
		choice, _ := reader.ReadString('\n')
		switch strings.TrimSpace(choice) {
		case "1":
			doGenerateSecret()
		case "2":
			doInitiate(client, account, reader)
		case "3":
			doWithdraw(client, account, reader)
		case "4":
			doRefund(client, account, reader)
		case "5":
			doShowEvents(client)
		case "0":
			return
		default:
			logError("Unknown option")
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptUint(reader *bufio.Reader, label string) (uint64, error) {
	return strconv.ParseUint(prompt(reader, label), 10, 64)
}

func doGenerateSecret() {
	secret, hash, err := htlc.GenerateSecret(htlc.Sha3Digest)
	if err != nil {
		logError(fmt.Sprintf("Failed to generate secret: %v", err))
		return
	}
	logSuccess("Keep the secret private until the counterpart lock exists!")
	logInfo(fmt.Sprintf("secret = 0x%s", common.ByteSliceToPureHexStr(secret[:])))
	logInfo(fmt.Sprintf("hash   = %s", hash.Hex()))
}

func doInitiate(client *aptosclient.AptosClient, account *aptos.Account, reader *bufio.Reader) {
	secretHash := prompt(reader, "Secret hash (hex): ")
	recipient := prompt(reader, "Recipient address: ")
	amount, err := promptUint(reader, "Amount: ")
	if err != nil {
		logError(fmt.Sprintf("Bad amount: %v", err))
		return
	}
	timeout, err := promptUint(reader, "Timeout (seconds): ")
	if err != nil {
		logError(fmt.Sprintf("Bad timeout: %v", err))
		return
	}
	targetChain := prompt(reader, "Target chain: ")
	targetAddress := prompt(reader, "Target address: ")

	txHash, err := client.InitiateSwap(
		account,
		common.HexStrToByteSlice(secretHash),
		recipient,
		amount,
		timeout,
		agreement.ChainId(targetChain),
		targetAddress,
	)
	if err != nil {
		logError(fmt.Sprintf("Initiate failed: %v", err))
		return
	}
	logSuccess(fmt.Sprintf("Swap initiated, tx: %s", txHash))
}

func doWithdraw(client *aptosclient.AptosClient, account *aptos.Account, reader *bufio.Reader) {
	lockId := prompt(reader, "Lock id (hex): ")
	preimage := prompt(reader, "Preimage (hex): ")

	txHash, err := client.Withdraw(account, common.HexStrToByteSlice(lockId), common.HexStrToByteSlice(preimage))
	if err != nil {
		logError(fmt.Sprintf("Withdraw failed: %v", err))
		return
	}
	logSuccess(fmt.Sprintf("Withdrawn, tx: %s", txHash))
}

func doRefund(client *aptosclient.AptosClient, account *aptos.Account, reader *bufio.Reader) {
	lockId := prompt(reader, "Lock id (hex): ")

	txHash, err := client.Refund(account, common.HexStrToByteSlice(lockId))
	if err != nil {
		logError(fmt.Sprintf("Refund failed: %v", err))
		return
	}
	logSuccess(fmt.Sprintf("Refunded, tx: %s", txHash))
}

func doShowEvents(client *aptosclient.AptosClient) {
	latest, err := client.LatestPosition()
	if err != nil {
		logError(fmt.Sprintf("Failed to get latest position: %v", err))
		return
	}

	var from uint64
	if latest > 1000 {
		from = latest - 1000
	}
	events, err := client.EventsInRange(from, latest)
	if err != nil {
		logError(fmt.Sprintf("Failed to fetch events: %v", err))
		return
	}
	if len(events) == 0 {
		logInfo("No bridge events in the recent window")
		return
	}
	for _, ev := range events {
		logInfo(fmt.Sprintf("[%d] %s: %s", ev.Position(), ev.Kind(), ev))
	}
}
