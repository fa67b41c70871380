package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/internal/core/application"
	"github.com/vault-network/vault/internal/core/ports"
	filestore "github.com/vault-network/vault/internal/infrastructure/artifacts/file"
	ethcontract "github.com/vault-network/vault/internal/infrastructure/contract/ethereum"
	"github.com/vault-network/vault/internal/infrastructure/db"
	esploraexplorer "github.com/vault-network/vault/internal/infrastructure/explorer/esplora"
	"github.com/vault-network/vault/internal/infrastructure/feeoracle"
	mempooloracle "github.com/vault-network/vault/internal/infrastructure/feeoracle/mempool"
	timescheduler "github.com/vault-network/vault/internal/infrastructure/scheduler/gocron"
	txbuilder "github.com/vault-network/vault/internal/infrastructure/tx-builder"
	jsonrpcprovider "github.com/vault-network/vault/internal/infrastructure/vaultprovider/jsonrpc"
	singlekeywallet "github.com/vault-network/vault/internal/infrastructure/wallet/singlekey"
)

const dialTimeout = 30 * time.Second

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedWallets = supportedType{
		"singlekey": {},
	}
)

type Config struct {
	Datadir       string
	Port          uint32
	LogLevel      int
	EnableMetrics bool
	CorsOrigins   []string

	Network       string
	EventDbType   string
	DbType        string
	DbDir         string
	EventDbDir    string
	SchedulerType string
	WalletType    string

	EsploraURL         string
	MempoolURL         string
	FeeRefreshInterval int64

	EthRpcURL            string
	VaultContractAddress string
	VaultProvider        string
	VaultProviderPubkey  string
	VaultProviderURL     string
	VaultKeepers         []string
	UniversalChallengers []string

	PollingInterval time.Duration
	PayoutsTimeout  time.Duration

	BtcPrivateKey string `json:"-"`
	EthPrivateKey string `json:"-"`

	network       common.Network
	repo          ports.RepoManager
	wallet        ports.BitcoinWallet
	explorer      ports.Explorer
	feeOracle     ports.FeeOracle
	scheduler     ports.SchedulerService
	txBuilder     ports.UnfundedTxBuilder
	contract      ports.VaultContract
	vaultProvider ports.VaultProvider
	artifacts     ports.ArtifactStore
	svc           application.Service
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir              = "DATADIR"
	Port                 = "PORT"
	LogLevel             = "LOG_LEVEL"
	EnableMetrics        = "ENABLE_METRICS"
	CorsOrigins          = "CORS_ORIGINS"
	Network              = "NETWORK"
	EventDbType          = "EVENT_DB_TYPE"
	DbType               = "DB_TYPE"
	SchedulerType        = "SCHEDULER_TYPE"
	WalletType           = "WALLET_TYPE"
	EsploraURL           = "ESPLORA_URL"
	MempoolURL           = "MEMPOOL_URL"
	FeeRefreshInterval   = "FEE_REFRESH_INTERVAL"
	EthRpcURL            = "ETH_RPC_URL"
	VaultContractAddress = "VAULT_CONTRACT_ADDRESS"
	VaultProvider        = "VAULT_PROVIDER"
	VaultProviderPubkey  = "VAULT_PROVIDER_PUBKEY"
	VaultProviderURL     = "VAULT_PROVIDER_URL"
	VaultKeepers         = "VAULT_KEEPERS"
	UniversalChallengers = "UNIVERSAL_CHALLENGERS"
	PollingInterval      = "POLLING_INTERVAL"
	PayoutsTimeout       = "PAYOUTS_TIMEOUT"
	BtcPrivateKey        = "BTC_PRIVATE_KEY"
	EthPrivateKey        = "ETH_PRIVATE_KEY"

	defaultDatadir            = btcutil.AppDataDir("vaultd", false)
	DefaultPort               = 7080
	defaultLogLevel           = 4
	defaultNetwork            = common.BitcoinMainNet.Name
	defaultEventDbType        = "badger"
	defaultDbType             = "badger"
	defaultSchedulerType      = "gocron"
	defaultWalletType         = "singlekey"
	defaultEsploraURL         = "https://blockstream.info/api"
	defaultMempoolURL         = "https://mempool.space/api"
	defaultFeeRefreshInterval = 60
	defaultPollingInterval    = 5 * time.Second
	defaultPayoutsTimeout     = 20 * time.Minute
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("VAULT")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(Network, defaultNetwork)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(WalletType, defaultWalletType)
	viper.SetDefault(EsploraURL, defaultEsploraURL)
	viper.SetDefault(MempoolURL, defaultMempoolURL)
	viper.SetDefault(FeeRefreshInterval, defaultFeeRefreshInterval)
	viper.SetDefault(PollingInterval, defaultPollingInterval)
	viper.SetDefault(PayoutsTimeout, defaultPayoutsTimeout)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	return &Config{
		Datadir:              viper.GetString(Datadir),
		Port:                 viper.GetUint32(Port),
		LogLevel:             viper.GetInt(LogLevel),
		EnableMetrics:        viper.GetBool(EnableMetrics),
		CorsOrigins:          getStringSlice(CorsOrigins),
		Network:              viper.GetString(Network),
		EventDbType:          viper.GetString(EventDbType),
		DbType:               viper.GetString(DbType),
		DbDir:                dbPath,
		EventDbDir:           dbPath,
		SchedulerType:        viper.GetString(SchedulerType),
		WalletType:           viper.GetString(WalletType),
		EsploraURL:           viper.GetString(EsploraURL),
		MempoolURL:           viper.GetString(MempoolURL),
		FeeRefreshInterval:   viper.GetInt64(FeeRefreshInterval),
		EthRpcURL:            viper.GetString(EthRpcURL),
		VaultContractAddress: viper.GetString(VaultContractAddress),
		VaultProvider:        viper.GetString(VaultProvider),
		VaultProviderPubkey:  viper.GetString(VaultProviderPubkey),
		VaultProviderURL:     viper.GetString(VaultProviderURL),
		VaultKeepers:         getStringSlice(VaultKeepers),
		UniversalChallengers: getStringSlice(UniversalChallengers),
		PollingInterval:      viper.GetDuration(PollingInterval),
		PayoutsTimeout:       viper.GetDuration(PayoutsTimeout),
		BtcPrivateKey:        viper.GetString(BtcPrivateKey),
		EthPrivateKey:        viper.GetString(EthPrivateKey),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// getStringSlice accepts comma separated lists from env vars.
func getStringSlice(key string) []string {
	values := make([]string, 0)
	for _, v := range viper.GetStringSlice(key) {
		for _, vv := range strings.Split(v, ",") {
			if vv = strings.TrimSpace(vv); len(vv) > 0 {
				values = append(values, vv)
			}
		}
	}
	return values
}

// Validate checks the config and builds every service of the daemon.
func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedWallets.supports(c.WalletType) {
		return fmt.Errorf("wallet type not supported, please select one of: %s", supportedWallets)
	}
	network, err := common.ParseNetwork(c.Network)
	if err != nil {
		return err
	}
	c.network = network

	if len(c.EthRpcURL) <= 0 {
		return fmt.Errorf("missing ethereum rpc url")
	}
	if len(c.VaultContractAddress) <= 0 {
		return fmt.Errorf("missing vault contract address")
	}
	if len(c.VaultProvider) <= 0 || len(c.VaultProviderPubkey) <= 0 {
		return fmt.Errorf("missing vault provider address or pubkey")
	}
	if len(c.VaultProviderURL) <= 0 {
		return fmt.Errorf("missing vault provider url")
	}
	if len(c.VaultKeepers) <= 0 {
		return fmt.Errorf("missing vault keepers")
	}
	if len(c.BtcPrivateKey) <= 0 {
		return fmt.Errorf("missing btc private key")
	}
	if len(c.EthPrivateKey) <= 0 {
		return fmt.Errorf("missing eth private key")
	}
	if c.FeeRefreshInterval <= 0 {
		return fmt.Errorf("invalid fee refresh interval, must be greater than 0")
	}
	if c.PollingInterval <= 0 || c.PayoutsTimeout <= c.PollingInterval {
		return fmt.Errorf("invalid polling interval or payouts timeout")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.walletService(); err != nil {
		return err
	}
	if err := c.explorerService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.feeOracleService(); err != nil {
		return err
	}
	if err := c.txBuilderService(); err != nil {
		return err
	}
	if err := c.contractService(); err != nil {
		return err
	}
	if err := c.vaultProviderService(); err != nil {
		return err
	}
	if err := c.artifactStore(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// SchedulerService returns the scheduler refreshing the fee rates, it must
// be stopped on shutdown.
func (c *Config) SchedulerService() ports.SchedulerService {
	return c.scheduler
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) walletService() error {
	var svc ports.BitcoinWallet
	var err error
	switch c.WalletType {
	case "singlekey":
		svc, err = singlekeywallet.NewWallet(c.BtcPrivateKey, c.network.Params)
	default:
		err = fmt.Errorf("unknown wallet type")
	}
	if err != nil {
		return err
	}

	c.wallet = svc
	return nil
}

func (c *Config) explorerService() error {
	svc, err := esploraexplorer.NewExplorer(c.EsploraURL, c.network.Params)
	if err != nil {
		return err
	}

	c.explorer = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) feeOracleService() error {
	if c.scheduler == nil {
		return fmt.Errorf("scheduler not set")
	}

	oracle, err := mempooloracle.NewFeeOracle(c.MempoolURL)
	if err != nil {
		return err
	}
	svc, err := feeoracle.NewCachedFeeOracle(oracle, c.scheduler, c.FeeRefreshInterval)
	if err != nil {
		return err
	}
	c.scheduler.Start()

	c.feeOracle = svc
	return nil
}

func (c *Config) txBuilderService() error {
	svc, err := txbuilder.NewTxBuilder(c.network.Name, c.VaultKeepers, c.UniversalChallengers)
	if err != nil {
		return err
	}

	c.txBuilder = svc
	return nil
}

func (c *Config) contractService() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	svc, err := ethcontract.NewVaultContract(
		ctx, c.EthRpcURL, c.VaultContractAddress, c.EthPrivateKey,
	)
	if err != nil {
		return err
	}

	c.contract = svc
	return nil
}

func (c *Config) vaultProviderService() error {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	svc, err := jsonrpcprovider.NewVaultProvider(ctx, c.VaultProviderURL)
	if err != nil {
		return err
	}

	c.vaultProvider = svc
	return nil
}

func (c *Config) artifactStore() error {
	svc, err := filestore.NewArtifactStore(c.Datadir)
	if err != nil {
		return err
	}

	c.artifacts = svc
	return nil
}

func (c *Config) appService() error {
	if c.repo == nil {
		return fmt.Errorf("config not validated")
	}

	svc, err := application.NewService(
		application.Config{
			Network:              c.network,
			VaultProvider:        c.VaultProvider,
			VaultProviderPubkey:  c.VaultProviderPubkey,
			VaultKeepers:         c.VaultKeepers,
			UniversalChallengers: c.UniversalChallengers,
			PollingInterval:      c.PollingInterval,
			PayoutsTimeout:       c.PayoutsTimeout,
		},
		c.wallet, c.explorer, c.feeOracle, c.txBuilder, c.contract,
		c.vaultProvider, c.artifacts, c.repo,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
