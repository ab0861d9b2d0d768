package objstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/saascore/saas-cloud/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDbKeyPrefixRemove(t *testing.T) {
	assert.Equal(t, "acme", DbKeyPrefixRemove("1/Instance/acme"))
	assert.Equal(t, "noprefix", DbKeyPrefixRemove("noprefix"))
}

func TestDummyStore(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	store := NewDummyStore()

	_, err := store.Create(ctx, "1/Instance/acme", "a")
	require.Nil(t, err)
	_, err = store.Create(ctx, "1/Instance/acme", "a")
	require.True(t, errors.Is(err, ErrKVStoreKeyExists))

	val, ver, err := store.Get("1/Instance/acme")
	require.Nil(t, err)
	require.Equal(t, "a", string(val))
	require.Equal(t, int64(1), ver)

	_, err = store.Update(ctx, "1/Instance/acme", "b", 5)
	require.NotNil(t, err)
	_, err = store.Update(ctx, "1/Instance/acme", "b", 1)
	require.Nil(t, err)
	_, err = store.Update(ctx, "1/Instance/none", "b", ObjStoreUpdateVersionAny)
	require.True(t, errors.Is(err, ErrKVStoreKeyNotFound))

	_, err = store.Put(ctx, "1/Instance/beta", "c")
	require.Nil(t, err)
	_, err = store.Put(ctx, "1/Server/s1", "d")
	require.Nil(t, err)

	keys := []string{}
	err = store.List("1/Instance/", func(key, val []byte, rev int64) error {
		keys = append(keys, string(key))
		return nil
	})
	require.Nil(t, err)
	require.Equal(t, []string{"1/Instance/acme", "1/Instance/beta"}, keys)

	_, err = store.Delete(ctx, "1/Instance/acme")
	require.Nil(t, err)
	_, _, err = store.Get("1/Instance/acme")
	require.True(t, errors.Is(err, ErrKVStoreKeyNotFound))
}

func TestDummySTM(t *testing.T) {
	ctx := log.StartTestSpan(context.Background())
	store := NewDummyStore()

	// failed apply leaves no writes behind
	_, err := store.ApplySTM(ctx, func(stm STM) error {
		stm.Put("1/k", "v")
		return fmt.Errorf("abort")
	})
	require.NotNil(t, err)
	_, _, err = store.Get("1/k")
	require.NotNil(t, err)

	// concurrent read-modify-write increments are not lost
	var wg sync.WaitGroup
	for ii := 0; ii < 20; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ApplySTM(ctx, func(stm STM) error {
				cur, _ := strconv.Atoi(stm.Get("1/counter"))
				stm.Put("1/counter", strconv.Itoa(cur+1))
				return nil
			})
			assert.Nil(t, err)
		}()
	}
	wg.Wait()
	val, _, err := store.Get("1/counter")
	require.Nil(t, err)
	require.Equal(t, "20", string(val))

	_, err = store.ApplySTM(ctx, func(stm STM) error {
		require.NotZero(t, stm.Rev("1/counter"))
		stm.Del("1/counter")
		require.Equal(t, "", stm.Get("1/counter"))
		return nil
	})
	require.Nil(t, err)
	_, _, err = store.Get("1/counter")
	require.NotNil(t, err)
}
