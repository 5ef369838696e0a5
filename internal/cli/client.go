package cli

import (
	"fmt"
	nethttp "net/http"

	"github.com/spf13/viper"

	"github.com/altostore/altostore/internal/httputil"
	"github.com/altostore/altostore/storage"
	"github.com/altostore/altostore/storage/blob"
)

// buildStorageClient assembles credentials, proxy-aware transport and the
// request pipeline from the resolved configuration.
func buildStorageClient() (*storage.Client, error) {
	var cred *storage.Credentials
	var err error
	if viper.GetBool("emulator") {
		cred = storage.NewEmulatorCredentials()
	} else {
		cred, err = storage.NewCredentials(viper.GetString("account"), viper.GetString("key"))
		if err != nil {
			return nil, fmt.Errorf("set --account and --key, or ALTO_ACCOUNT and ALTO_KEY: %w", err)
		}
	}

	httpClient, err := buildHTTPClient()
	if err != nil {
		return nil, err
	}
	return storage.NewClient(cred, &storage.Options{
		Endpoint:   viper.GetString("endpoint"),
		HTTPClient: httpClient,
		Logger:     logger,
	})
}

func buildBlobClient() (*blob.Client, error) {
	svc, err := buildStorageClient()
	if err != nil {
		return nil, err
	}
	return blob.NewClient(svc), nil
}

func buildHTTPClient() (*nethttp.Client, error) {
	return httputil.NewTransferClient(httputil.ProxyConfig{
		Mode:     viper.GetString("proxy-mode"),
		Host:     viper.GetString("proxy-host"),
		Port:     viper.GetInt("proxy-port"),
		User:     viper.GetString("proxy-user"),
		Password: viper.GetString("proxy-password"),
		NoProxy:  viper.GetString("no-proxy"),
	})
}

// transferTuning resolves worker count and chunk size from config. Zero
// values let the transfer package apply its own defaults.
func transferTuning() (concurrency int, chunkSize int64) {
	concurrency = viper.GetInt("concurrency")
	if mib := viper.GetInt("chunk-size-mib"); mib > 0 {
		chunkSize = int64(mib) << 20
	}
	return concurrency, chunkSize
}
