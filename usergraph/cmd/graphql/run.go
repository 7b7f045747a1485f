/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package graphql is a http server for the usergraph GraphQL API.
//
// GraphQL servers should serve both GET and POST
// https://graphql.org/learn/serving-over-http/
//
// GET should be like
// http://myapi/graphql?query={getUsers{name}}
//
// POST should have a json content body like
//
//	{
//	  "query": "...",
//	  "operationName": "...",
//	  "variables": { "myVariable": "someValue", ... }
//	}
//
// GraphQL servers should return 200 (even on errors),
// and result body should be json:
//
//	{
//	  "data": { "query_name" : { ... } },
//	  "errors": [ { "message" : ..., ...} ... ]
//	}
//
// If an error was encountered before execution begins, the data entry is not
// present in the result.
package graphql

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opencensus.io/trace"
	"go.opencensus.io/zpages"
	"golang.org/x/sync/errgroup"

	"github.com/hypermodeinc/usergraph/graphql/resolve"
	"github.com/hypermodeinc/usergraph/graphql/schema"
	"github.com/hypermodeinc/usergraph/graphql/web"
	"github.com/hypermodeinc/usergraph/store"
	"github.com/hypermodeinc/usergraph/store/badgerstore"
	"github.com/hypermodeinc/usergraph/store/dgstore"
	"github.com/hypermodeinc/usergraph/store/memstore"
	"github.com/hypermodeinc/usergraph/x"
)

// GraphQL is the sub-command invoked when running "usergraph graphql".
var GraphQL x.SubCommand

const (
	storeMemory = "memory"
	storeDgraph = "dgraph"
	storeBadger = "badger"

	shutdownTimeout = 10 * time.Second
)

func init() {
	GraphQL.Cmd = &cobra.Command{
		Use:   "graphql",
		Short: "Run the usergraph GraphQL API",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(GraphQL.Conf); err != nil {
				if glog.V(2) {
					fmt.Printf("Error : %+v\n", err)
				} else {
					fmt.Printf("Error : %s\n", err)
				}
				os.Exit(1)
			}
		},
	}
	GraphQL.EnvPrefix = "USERGRAPH_GRAPHQL"

	flags := GraphQL.Cmd.Flags()
	flags.IntP("port", "p", 3000, "Port on which to run the HTTP service")
	flags.String("store", storeMemory,
		"Where users are kept, one of [memory, badger, dgraph]")
	flags.StringP("alpha", "a", "dgraph://localhost:9080",
		"Connection string of the Dgraph alpha, used with --store=dgraph")
	flags.String("badger_dir", "ug",
		"Directory for the Badger database, used with --store=badger")
	flags.String("id_policy", string(memstore.Monotonic),
		"How the memory store numbers users, one of [monotonic, length]. "+
			"length reuses ids after a delete.")
	flags.Bool("seed", true, "Start the memory store with the users Alice and Bob")
	flags.Bool("graphiql", true, "Serve the GraphiQL console to browsers at /graphql")
	flags.String("audit", "", "File to write a JSON audit record of every mutation to")

	// OpenCensus flags.
	flags.Float64("trace", 0.01, "The ratio of queries to trace.")
}

// openStore opens the store conf asks for.
func openStore(ctx context.Context, conf *viper.Viper) (store.Store, error) {
	switch kind := strings.ToLower(conf.GetString("store")); kind {
	case storeMemory:
		policy, err := memstore.ParseIDPolicy(conf.GetString("id_policy"))
		if err != nil {
			return nil, err
		}
		if conf.GetBool("seed") {
			return memstore.NewSeeded(policy), nil
		}
		return memstore.New(policy), nil
	case storeBadger:
		return badgerstore.Open(badgerstore.Options{Dir: conf.GetString("badger_dir")})
	case storeDgraph:
		return dgstore.Open(ctx, conf.GetString("alpha"))
	default:
		return nil, errors.Errorf("unknown store %q, use one of [%s, %s, %s]",
			kind, storeMemory, storeBadger, storeDgraph)
	}
}

// newMux builds the resolvers for st and the http routes that serve them.  It
// fails if the schema's root fields and the bound resolvers don't match.
func newMux(conf *viper.Viper, st store.Store, audit *x.Logger) (*http.ServeMux, error) {
	gqlSchema, err := schema.FromString(schema.UserSchema)
	if err != nil {
		return nil, err
	}

	queryMws := make(map[schema.QueryType]resolve.QueryMiddlewares)
	for _, q := range gqlSchema.Queries() {
		queryMws[schema.QueryType(q)] = resolve.DefaultQueryMiddlewares()
	}
	mutationMws := make(map[schema.MutationType]resolve.MutationMiddlewares)
	for _, m := range gqlSchema.Mutations() {
		mutationMws[schema.MutationType(m)] = resolve.DefaultMutationMiddlewares(audit)
	}

	rf := resolve.NewResolverFactory(nil, nil).
		WithUserResolvers(st).
		WithSchemaIntrospection().
		WithQueryMiddlewareConfig(queryMws).
		WithMutationMiddlewareConfig(mutationMws)
	if err := rf.Check(gqlSchema); err != nil {
		return nil, err
	}

	mainServer := web.NewServer(resolve.New(gqlSchema, rf),
		web.Options{GraphiQL: conf.GetBool("graphiql")})

	mux := http.NewServeMux()
	mux.Handle("/graphql", mainServer.HTTPHandler())
	mux.Handle("/health", web.HealthHandler())
	if err := x.RegisterExporters(mux, "usergraph"); err != nil {
		return nil, err
	}
	// Add OpenCensus z-pages.
	zpages.Handle(mux, "/z")

	return mux, nil
}

func run(conf *viper.Viper) error {
	x.PrintVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "while opening store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			glog.Errorf("while closing store: %v", err)
		}
	}()
	glog.Infof("Keeping users in the %s store", conf.GetString("store"))

	var audit *x.Logger
	if path := conf.GetString("audit"); path != "" {
		if audit, err = x.InitLogger(path); err != nil {
			return err
		}
		defer audit.Sync()
		glog.Infof("Writing mutation audit log to %s", path)
	}

	mux, err := newMux(conf, st, audit)
	if err != nil {
		return err
	}

	trace.ApplyConfig(trace.Config{
		DefaultSampler:             trace.ProbabilitySampler(conf.GetFloat64("trace")),
		MaxAnnotationEventsPerSpan: 256,
	})

	bind := "localhost"
	if conf.GetBool("bindall") {
		bind = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", bind, conf.GetInt("port"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("Bringing up GraphQL HTTP API at %s/graphql", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "GraphQL server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		glog.Infof("Shutting down GraphQL HTTP API")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Wrap(srv.Shutdown(sctx), "while shutting down GraphQL server")
	})
	return g.Wait()
}
