package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-redis/redis"
	"github.com/saascore/saas-cloud/instance-manager/api"
	"github.com/saascore/saas-cloud/instance-manager/cloudflaremgmt"
	"github.com/saascore/saas-cloud/instance-manager/orchestrator"
	"github.com/saascore/saas-cloud/instance-manager/store"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/objstore"
	"github.com/saascore/saas-cloud/rediscache"
	"github.com/saascore/saas-cloud/vault"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "instancemgr",
	Short:        "Provisions and manages hosted Odoo instances",
	SilenceUsage: true,
	RunE:         run,
}

var services struct {
	objStore    objstore.KVStore
	etcdClient  *objstore.EtcdClient
	redisClient *rediscache.RedisClient
	eventsSub   *redis.PubSub
	apiServer   *api.Server
}

func main() {
	addFlags(rootCmd.Flags())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return err
	}
	settings, err := loadSettings(v)
	if err != nil {
		return err
	}
	err = startServices(settings)
	if err != nil {
		stopServices()
		log.FatalLog(err.Error())
	}
	defer stopServices()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	// wait until process in killed/interrupted
	sig := <-sigChan
	fmt.Println(sig)
	return nil
}

func startServices(settings *Settings) error {
	log.SetDebugLevelStrs(settings.DebugLevels)
	log.InitTracer()
	span := log.StartSpan(log.DebugLevelInfo, "main")
	span.SetTag("level", "init")
	defer span.Finish()
	ctx := log.ContextWithSpan(context.Background(), span)

	log.SpanLog(ctx, log.DebugLevelInfo, "Start up", "apiAddr", settings.ApiAddr, "etcdUrls", settings.EtcdUrls)
	objstore.InitRegion(settings.Region)

	if settings.EtcdUrls == "" {
		log.SpanLog(ctx, log.DebugLevelInfo, "No etcd configured, using in-memory store")
		services.objStore = objstore.NewDummyStore()
	} else {
		etcdClient, err := objstore.GetEtcdClientBasic(settings.EtcdUrls)
		if err != nil {
			return fmt.Errorf("Failed to initialize Object Store, %v", err)
		}
		services.etcdClient = etcdClient
		err = etcdClient.CheckConnected(50, 20*time.Millisecond)
		if err != nil {
			return fmt.Errorf("Failed to connect to etcd servers, %v", err)
		}
		services.objStore = etcdClient
	}
	st := store.New(services.objStore)

	keys := orchestrator.KeySources{}
	apiOpts := []api.Option{}
	if settings.VaultAddr != "" {
		vaultConfig, err := vault.BestConfig(settings.VaultAddr)
		if err != nil {
			return err
		}
		keys = append(keys, &orchestrator.VaultKeySource{Config: vaultConfig})
		apiOpts = append(apiOpts, api.WithVault(vaultConfig))
	}
	keys = append(keys, &orchestrator.StoreKeySource{Store: st})
	clients := &orchestrator.SSHClientFactory{
		Keys:           keys,
		ConnectTimeout: settings.Orchestrator.ConnectTimeout(),
	}

	opts := []orchestrator.Option{}
	if settings.RedisAddr != "" {
		redisClient, err := rediscache.NewClient(settings.RedisAddr)
		if err != nil {
			return err
		}
		services.redisClient = redisClient
		if err := redisClient.IsServerReady(10 * time.Second); err != nil {
			return err
		}
		events := rediscache.NewEventPublisher(redisClient)
		opts = append(opts,
			orchestrator.WithLocker(rediscache.NewLocker(redisClient)),
			orchestrator.WithEvents(events))
		services.eventsSub, err = events.WatchEvents(ctx, func(ev *rediscache.InstanceEvent) {
			log.DebugLog(log.DebugLevelEvents, "instance event", "instance", ev.Key,
				"state", ev.State, "operation", ev.Operation, "operationID", ev.OperationID, "err", ev.Error)
		})
		if err != nil {
			return err
		}
	}
	if settings.CloudflareApiKey != "" {
		dns, err := cloudflaremgmt.NewProvider(settings.CloudflareApiKey, settings.CloudflareUser)
		if err != nil {
			return err
		}
		if settings.Orchestrator.DNSTTL != 0 {
			dns.TTL = settings.Orchestrator.DNSTTL
		}
		opts = append(opts, orchestrator.WithDNS(dns))
	}
	mgr := orchestrator.NewManager(settings.Orchestrator, st, clients, opts...)

	services.apiServer = api.New(settings.ApiAddr, mgr, apiOpts...)
	services.apiServer.Start()
	if err := services.apiServer.WaitUntilReady(); err != nil {
		return err
	}
	log.SpanLog(ctx, log.DebugLevelInfo, "Ready")
	return nil
}

func stopServices() {
	if services.apiServer != nil {
		services.apiServer.Stop()
	}
	if services.eventsSub != nil {
		services.eventsSub.Close()
	}
	if services.redisClient != nil {
		services.redisClient.Close()
	}
	if services.etcdClient != nil {
		services.etcdClient.Close()
	}
	log.FinishTracer()
}
