// Fig speaks a Redis-flavored protocol: every command addresses a named ordered map held by the Registry,
// and the positional commands (FIRST / LAST / NEXT / PREV / MOVE / INSERT) expose the traversal order the
// ordered map maintains. Plain key commands (GET / SET / DEL / EXISTS) behave like their Redis namesakes.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nobletooth/fig/pkg/ordmap"
	"github.com/nobletooth/fig/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var (
	address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

	commandsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_commands_total",
		Help: "Total number of commands served, by command name and outcome.",
	}, []string{"command", "status" /* ok | error */})
)

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeBulks      []string // Writes an array of bulk strings if set.
	writeBulk       *string  // Writes a single bulk string if set.
	writeString     string   // Writes a simple string value if set.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(s string) redisOutput {
	return redisOutput{writeBulk: &s}
}

func writeRedisBulks(values ...string) redisOutput {
	if values == nil { // An empty array still writes `*0`, not a nil reply.
		values = []string{}
	}
	return redisOutput{writeBulks: values}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

// writeMapError translates the ordered map's error taxonomy to Redis error replies.
func writeMapError(err error) redisOutput {
	switch {
	case errors.Is(err, ordmap.ErrKeyNotFound):
		return writeRedisError(errors.New("no such key"))
	case errors.Is(err, ordmap.ErrEmpty):
		return writeRedisError(errors.New("empty map"))
	case errors.Is(err, ordmap.ErrNoNeighbor):
		return writeRedisError(errors.New("no neighbor"))
	default:
		return writeRedisError(err)
	}
}

func wrongArity(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", command))
}

type redisHandler struct {
	registry *Registry
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(registry *Registry) (*redisHandler, error) {
	if registry == nil {
		return nil, errors.New("expected a non-nil registry")
	}
	return &redisHandler{registry: registry}, nil
}

// withMap runs fn against the named map under its lock, treating an unregistered name as an empty map
// without allocating it. The empty throwaway map keeps fn's error semantics identical on both paths.
func (rh *redisHandler) withMap(name string, fn func(m *ordmap.Map[string, string]) error) error {
	if lm, exists := rh.registry.Lookup(name); exists {
		return lm.Do(fn)
	}
	return fn(ordmap.New[string, string]())
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	output := rh.dispatch(cmd)
	status := "ok"
	if output.err != nil {
		status = "error"
	}
	commandsMetric.WithLabelValues(strings.ToUpper(cmd.command), status).Inc()
	return output
}

func (rh *redisHandler) dispatch(cmd redisCommand) redisOutput {
	switch strings.ToUpper(cmd.command) {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SET":
		if len(cmd.args) != 3 {
			return wrongArity("SET")
		}
		name, key, value := cmd.args[0], cmd.args[1], cmd.args[2]
		if err := rh.registry.Get(name).Do(func(m *ordmap.Map[string, string]) error {
			m.Set(key, value)
			return nil
		}); err != nil {
			return writeMapError(err)
		}
		return writeRedisString(RedisOk)
	case "GET":
		if len(cmd.args) != 2 {
			return wrongArity("GET")
		}
		var value string
		err := rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) (mapErr error) {
			value, mapErr = m.Get(cmd.args[1])
			return mapErr
		})
		if errors.Is(err, ordmap.ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeMapError(err)
		}
		return writeRedisBulk(value)
	case "DEL":
		if len(cmd.args) < 2 {
			return wrongArity("DEL")
		}
		deletedCount := 0
		// Repeated keys in one DEL must not be double counted.
		keys := utils.Unique(cmd.args[1:], false /*lifo*/)
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			for _, key := range keys {
				if err := m.Delete(key); err == nil {
					deletedCount++
				}
			}
			return nil
		})
		return writeRedisInt(deletedCount)
	case "EXISTS":
		if len(cmd.args) != 2 {
			return wrongArity("EXISTS")
		}
		found := 0
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			if m.Contains(cmd.args[1]) {
				found = 1
			}
			return nil
		})
		return writeRedisInt(found)
	case "LEN":
		if len(cmd.args) != 1 {
			return wrongArity("LEN")
		}
		size := 0
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			size = m.Len()
			return nil
		})
		return writeRedisInt(size)
	case "FIRST", "LAST":
		if len(cmd.args) != 1 {
			return wrongArity(strings.ToUpper(cmd.command))
		}
		var key string
		err := rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) (mapErr error) {
			if strings.EqualFold(cmd.command, "FIRST") {
				key, mapErr = m.First()
			} else {
				key, mapErr = m.Last()
			}
			return mapErr
		})
		if err != nil {
			return writeMapError(err)
		}
		return writeRedisBulk(key)
	case "NEXT", "PREV":
		if len(cmd.args) != 2 {
			return wrongArity(strings.ToUpper(cmd.command))
		}
		dir := ordmap.After
		if strings.EqualFold(cmd.command, "PREV") {
			dir = ordmap.Before
		}
		var neighborKey, neighborValue string
		err := rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) (mapErr error) {
			neighborKey, neighborValue, mapErr = m.Neighbor(cmd.args[1], dir)
			return mapErr
		})
		if errors.Is(err, ordmap.ErrNoNeighbor) {
			return writeRedisNil()
		} else if err != nil {
			return writeMapError(err)
		}
		return writeRedisBulks(neighborKey, neighborValue)
	case "MOVE":
		if len(cmd.args) != 4 {
			return wrongArity("MOVE")
		}
		dir, err := ordmap.ParseDirection(cmd.args[3])
		if err != nil {
			return writeRedisError(err)
		}
		name, key, anchor := cmd.args[0], cmd.args[1], cmd.args[2]
		if err := rh.withMap(name, func(m *ordmap.Map[string, string]) error {
			return m.Relocate(key, anchor, dir)
		}); err != nil {
			return writeMapError(err)
		}
		return writeRedisString(RedisOk)
	case "INSERT":
		if len(cmd.args) != 5 {
			return wrongArity("INSERT")
		}
		dir, err := ordmap.ParseDirection(cmd.args[4])
		if err != nil {
			return writeRedisError(err)
		}
		name, key, value, anchor := cmd.args[0], cmd.args[1], cmd.args[2], cmd.args[3]
		// INSERT goes through Get: the anchor check still rejects the call on a fresh empty map,
		// but the map itself must exist to hold the entry when the anchor is present.
		if err := rh.registry.Get(name).Do(func(m *ordmap.Map[string, string]) error {
			return m.InsertAt(key, value, anchor, dir)
		}); err != nil {
			return writeMapError(err)
		}
		return writeRedisString(RedisOk)
	case "KEYS":
		if len(cmd.args) != 1 {
			return wrongArity("KEYS")
		}
		var keys []string
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			keys = m.Keys()
			return nil
		})
		return writeRedisBulks(keys...)
	case "ENTRIES":
		if len(cmd.args) != 1 {
			return wrongArity("ENTRIES")
		}
		var flat []string
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			for _, entry := range m.Entries() {
				flat = append(flat, entry.Key, entry.Value)
			}
			return nil
		})
		return writeRedisBulks(flat...)
	case "MAPS":
		if len(cmd.args) != 0 {
			return wrongArity("MAPS")
		}
		return writeRedisBulks(rh.registry.Names()...)
	case "DROP":
		if len(cmd.args) != 1 {
			return wrongArity("DROP")
		}
		dropped := 0
		if rh.registry.Drop(cmd.args[0]) {
			dropped = 1
		}
		return writeRedisInt(dropped)
	case "DEBUG":
		if len(cmd.args) != 1 {
			return wrongArity("DEBUG")
		}
		var dump string
		_ = rh.withMap(cmd.args[0], func(m *ordmap.Map[string, string]) error {
			dump = m.Dump()
			return nil
		})
		return writeRedisBulk(dump)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// writeOutput renders a redisOutput onto the connection.
func writeOutput(conn redcon.Conn, output redisOutput) {
	switch {
	case output.closeConnection:
		conn.WriteString(output.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("failed to close connection", "error", err)
		}
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeBulks != nil:
		conn.WriteArray(len(output.writeBulks))
		for _, bulk := range output.writeBulks {
			conn.WriteBulkString(bulk)
		}
	case output.writeBulk != nil:
		conn.WriteBulkString(*output.writeBulk)
	default:
		conn.WriteString(output.writeString)
	}
}

// RunRedisServer starts a Redis protocol server that serves the ordered maps held by registry.
func RunRedisServer(ctx context.Context, registry *Registry) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(registry)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			writeOutput(conn, redisHandler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close fig: %w", err)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
