package objstore

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/etcd/clientv3"
	"github.com/coreos/etcd/clientv3/concurrency"
	"github.com/saascore/saas-cloud/log"
)

type EtcdClient struct {
	client *clientv3.Client
	config clientv3.Config
}

var (
	WriteRequestTimeout = 10 * time.Second
	ReadRequestTimeout  = 2 * time.Second
)

func GetEtcdClientBasic(clientUrls string) (*EtcdClient, error) {
	endpoints := strings.Split(clientUrls, ",")
	cfg := clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: WriteRequestTimeout,
	}
	return GetEtcdClient(&cfg)
}

func GetEtcdClient(cfg *clientv3.Config) (*EtcdClient, error) {
	client, err := clientv3.New(*cfg)
	if err != nil {
		return nil, err
	}
	etcdClient := EtcdClient{
		client: client,
		config: *cfg,
	}
	return &etcdClient, nil
}

func (e *EtcdClient) CheckConnected(tries int, retryTime time.Duration) error {
	var err error
	for ii := 0; ii < tries; ii++ {
		ctx, cancel := context.WithTimeout(context.Background(), WriteRequestTimeout)
		_, err = e.client.MemberList(ctx)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(retryTime)
	}
	return err
}

func (e *EtcdClient) Close() error {
	return e.client.Close()
}

func (e *EtcdClient) Create(ctx context.Context, key, val string) (int64, error) {
	if e.client == nil {
		return 0, ErrKVStoreNotInitialized
	}
	txnctx, cancel := context.WithTimeout(ctx, WriteRequestTimeout)
	defer cancel()
	txn := e.client.Txn(txnctx)
	txn = txn.If(clientv3.Compare(clientv3.Version(key), "=", 0))
	txn = txn.Then(clientv3.OpPut(key, val))
	resp, err := txn.Commit()
	if err != nil {
		return 0, err
	}
	if !resp.Succeeded {
		return 0, ExistsError(key)
	}
	log.SpanLog(ctx, log.DebugLevelStore, "created data", "key", key, "rev", resp.Header.Revision)
	return resp.Header.Revision, nil
}

func (e *EtcdClient) Update(ctx context.Context, key, val string, version int64) (int64, error) {
	if e.client == nil {
		return 0, ErrKVStoreNotInitialized
	}
	txnctx, cancel := context.WithTimeout(ctx, WriteRequestTimeout)
	defer cancel()
	txn := e.client.Txn(txnctx)
	if version == ObjStoreUpdateVersionAny {
		txn = txn.If(clientv3.Compare(clientv3.Version(key), "!=", 0))
	} else {
		txn = txn.If(clientv3.Compare(clientv3.Version(key), "=", version))
	}
	txn = txn.Then(clientv3.OpPut(key, val))
	resp, err := txn.Commit()
	if err != nil {
		return 0, err
	}
	if !resp.Succeeded {
		return 0, NotFoundError(key)
	}
	log.SpanLog(ctx, log.DebugLevelStore, "updated data", "key", key, "rev", resp.Header.Revision)
	return resp.Header.Revision, nil
}

func (e *EtcdClient) Delete(ctx context.Context, key string) (int64, error) {
	if e.client == nil {
		return 0, ErrKVStoreNotInitialized
	}
	txnctx, cancel := context.WithTimeout(ctx, WriteRequestTimeout)
	defer cancel()
	resp, err := e.client.Delete(txnctx, key)
	if err != nil {
		return 0, err
	}
	log.SpanLog(ctx, log.DebugLevelStore, "deleted data", "key", key, "rev", resp.Header.Revision)
	return resp.Header.Revision, nil
}

func (e *EtcdClient) Get(key string) ([]byte, int64, error) {
	if e.client == nil {
		return nil, 0, ErrKVStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), ReadRequestTimeout)
	resp, err := e.client.Get(ctx, key)
	cancel()
	if err != nil {
		return nil, 0, err
	}
	if len(resp.Kvs) == 0 {
		return nil, 0, NotFoundError(key)
	}
	obj := resp.Kvs[0]
	log.DebugLog(log.DebugLevelStore, "got data", "key", key, "ver", obj.Version, "rev", resp.Header.Revision)
	return obj.Value, obj.Version, nil
}

func (e *EtcdClient) Put(ctx context.Context, key, val string) (int64, error) {
	if e.client == nil {
		return 0, ErrKVStoreNotInitialized
	}
	txnctx, cancel := context.WithTimeout(ctx, WriteRequestTimeout)
	defer cancel()
	resp, err := e.client.Put(txnctx, key, val)
	if err != nil {
		return 0, err
	}
	log.SpanLog(ctx, log.DebugLevelStore, "put data", "key", key, "rev", resp.Header.Revision)
	return resp.Header.Revision, nil
}

func (e *EtcdClient) List(key string, cb ListCb) error {
	if e.client == nil {
		return ErrKVStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), ReadRequestTimeout)
	resp, err := e.client.Get(ctx, key, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	cancel()
	if err != nil {
		return err
	}
	for _, obj := range resp.Kvs {
		err = cb(obj.Key, obj.Value, resp.Header.Revision)
		if err != nil {
			break
		}
	}
	return err
}

func (e *EtcdClient) ApplySTM(ctx context.Context, apply func(STM) error) (int64, error) {
	resp, err := concurrency.NewSTM(e.client, func(stm concurrency.STM) error {
		return apply(stm)
	}, concurrency.WithAbortContext(ctx))
	if err != nil {
		return 0, err
	}
	log.SpanLog(ctx, log.DebugLevelStore, "apply stm", "rev", resp.Header.Revision)
	return resp.Header.Revision, nil
}
