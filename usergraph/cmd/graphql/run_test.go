/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/store/badgerstore"
	"github.com/hypermodeinc/usergraph/store/memstore"
)

func testConf(t *testing.T, settings map[string]interface{}) *viper.Viper {
	conf := viper.New()
	require.NoError(t, conf.BindPFlags(GraphQL.Cmd.Flags()))
	for k, v := range settings {
		conf.Set(k, v)
	}
	return conf
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory seeded by default", func(t *testing.T) {
		st, err := openStore(ctx, testConf(t, nil))
		require.NoError(t, err)
		defer st.Close()

		ms, ok := st.(*memstore.Store)
		require.True(t, ok)
		require.Equal(t, 2, ms.Len())
	})

	t.Run("memory unseeded", func(t *testing.T) {
		st, err := openStore(ctx, testConf(t, map[string]interface{}{"seed": false}))
		require.NoError(t, err)
		defer st.Close()
		require.Equal(t, 0, st.(*memstore.Store).Len())
	})

	t.Run("bad id policy", func(t *testing.T) {
		_, err := openStore(ctx, testConf(t, map[string]interface{}{"id_policy": "random"}))
		require.Error(t, err)
	})

	t.Run("badger", func(t *testing.T) {
		st, err := openStore(ctx, testConf(t, map[string]interface{}{
			"store":      "badger",
			"badger_dir": t.TempDir(),
		}))
		require.NoError(t, err)
		_, ok := st.(*badgerstore.Store)
		require.True(t, ok)
		require.NoError(t, st.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := openStore(ctx, testConf(t, map[string]interface{}{"store": "postgres"}))
		require.Error(t, err)
		require.Contains(t, err.Error(), `unknown store "postgres"`)
	})
}

func TestMux(t *testing.T) {
	conf := testConf(t, nil)
	st, err := openStore(context.Background(), conf)
	require.NoError(t, err)
	defer st.Close()

	mux, err := newMux(conf, st, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/graphql", "application/json",
		strings.NewReader(`{"query": "{ getUser(id: 1) { name } }"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Data json.RawMessage
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.JSONEq(t, `{"getUser": {"name": "Alice"}}`, string(body.Data))

	for _, path := range []string{"/health", "/debug/prometheus_metrics", "/z/tracez"} {
		r, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		r.Body.Close()
		require.Equal(t, http.StatusOK, r.StatusCode, path)
	}
}
