package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/darlinghq/darling-dbuskit"
	"github.com/darlinghq/darling-dbuskit/freedesktop/idle"
	"github.com/darlinghq/darling-dbuskit/freedesktop/powermanagement"
	"github.com/darlinghq/darling-dbuskit/internal/dbusgen"
	"github.com/kr/pretty"
)

var globalArgs struct {
	UseSessionBus bool   `flag:"session,Connect to session bus instead of system bus"`
	Names         string `flag:"names,Comma-separated list of bus names to claim"`
}

func busConn(ctx context.Context) (*dbuskit.Conn, error) {
	mk := dbuskit.SystemBus
	if globalArgs.UseSessionBus {
		mk = dbuskit.SessionBus
	}
	conn, err := mk(ctx)
	if err != nil {
		return nil, err
	}

	if globalArgs.Names == "" {
		return conn, nil
	}
	for _, n := range strings.Split(globalArgs.Names, ",") {
		claim, err := conn.Claim(ctx, n, dbuskit.ClaimOptions{})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("claiming name %q: %w", n, err)
		}
		go func() {
			for isOwner := range claim.Chan() {
				if isOwner {
					fmt.Printf("acquired name %s\n", n)
				} else {
					fmt.Printf("lost name %s\n", n)
				}
			}
		}()
	}
	return conn, nil
}

func main() {
	root := &command.C{
		Name:     "dbuskit",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "list",
				Usage: "list args...",
				Commands: []*command.C{
					{
						Name:  "peers",
						Usage: "list peers",
						Help:  "List peers connected to the bus.",
						Run:   command.Adapt(runListPeers),
					},
					{
						Name:  "interfaces",
						Usage: "list interfaces [peer] [object] [interface]",
						Help: `List bus interfaces.

With no arguments, enumerates all discoverable interfaces on named bus
services. Unique bus names (like ":1.234") are skipped because many of
them do not expect to be sent RPCs, and do not respond correctly.

With one argument, enumerate all objects of the given peer and the
interfaces they implement.

With two arguments, enumerate all interfaces on the given peer and
object.

With three arguments, list only the exact peer, object and interface
specified.
`,
						Run: runListInterfaces,
					},
					{
						Name:  "props",
						Usage: "list props [peer] [object] [interface] [property]",
						Help:  "List properties.",
						Run:   runListProps,
					},
				},
			},
			{
				Name:  "ping",
				Usage: "ping peer",
				Help:  "Ping a peer.",
				Run:   command.Adapt(runPing),
			},
			{
				Name:  "id",
				Usage: "id",
				Help:  "Print the bus's unique identifier.",
				Run:   command.Adapt(runBusID),
			},
			{
				Name:  "listen",
				Usage: "listen",
				Help:  "Listen to bus signals.",
				Run:   command.Adapt(runListen),
			},
			{
				Name: "generate",
				Usage: `generate interface
generate peer interface`,
				Help:     "Generate a client wrapper from introspection data",
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      runGenerate,
			},
			{
				Name:  "freedesktop",
				Usage: "freedesktop args...",
				Commands: []*command.C{
					{
						Name:  "idle",
						Usage: "idle",
						Help:  "Report session idle/lock state.",
						Run:   command.Adapt(runFdoIdle),
					},
					{
						Name:  "power",
						Usage: "power",
						Help:  "Report power management capabilities.",
						Run:   command.Adapt(runFdoPower),
					},
				},
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runListPeers(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()
	for p, err := range listPeers(ctx, conn, "") {
		if err != nil {
			fmt.Println(err)
			continue
		}
		owner, err := conn.GetNameOwner(ctx, p)
		if err != nil {
			fmt.Println(p)
		} else if owner == p {
			fmt.Println(p)
		} else {
			fmt.Printf("%s (%s)\n", p, owner)
		}
	}
	return nil
}

func runListInterfaces(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	args := growTo(env.Args, 3)
	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()

	var out indenter
	var prevPeer, prevPath string
	for p, err := range listPeers(ctx, conn, args[0]) {
		if err != nil {
			out.v(err)
			continue
		}
		for oi, err := range walkInterfaces(ctx, conn, p, orAny(args[1]), orAny(args[2])) {
			if err != nil {
				out.v(err)
				continue
			}
			if oi.Path.Peer != prevPeer {
				out.indent(0)
				out.v(oi.Path.Peer)
				out.indent(1)
				out.v(oi.Path.Path)
				out.indent(2)
			} else if string(oi.Path.Path) != prevPath {
				out.indent(1)
				out.v(oi.Path.Path)
				out.indent(2)
			}
			out.v(oi.Name)
			prevPeer, prevPath = oi.Path.Peer, string(oi.Path.Path)
		}
	}
	return nil
}

func runListProps(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	args := growTo(env.Args, 4)
	pf, err := regexp.Compile(orAny(args[3]))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(env.Context(), 10*time.Second)
	defer cancel()
	var out indenter
	var prevPeer, prevPath string
	for p, err := range listPeers(ctx, conn, args[0]) {
		if err != nil {
			out.v(err)
			continue
		}
		for oi, err := range walkInterfaces(ctx, conn, p, orAny(args[1]), orAny(args[2])) {
			if err != nil {
				out.v(err)
				continue
			}
			if len(oi.Properties()) == 0 {
				continue
			}
			props, err := conn.Peer(p).Object(oi.Path.Path).GetAllProperties(ctx, oi.Name)
			if err != nil {
				out.v(fmt.Errorf("listing properties of %s %s: %w", oi.Path, oi.Name, err))
				continue
			}
			if oi.Path.Peer != prevPeer {
				out.indent(0)
				out.v(oi.Path.Peer)
				out.indent(1)
				out.v(oi.Path.Path)
			} else if string(oi.Path.Path) != prevPath {
				out.indent(1)
				out.v(oi.Path.Path)
			}
			prevPeer, prevPath = oi.Path.Peer, string(oi.Path.Path)

			out.indent(2)
			out.v(oi.Name)
			out.indent(3)
			for k, v := range props {
				name := fmt.Sprintf("%v", k)
				if pf.MatchString(name) {
					out.f("%s: %v", name, v)
				}
			}
		}
	}
	return nil
}

func orAny(s string) string {
	if s == "" {
		return ".*"
	}
	return regexp.QuoteMeta(s)
}

func runPing(env *command.Env, peer string) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	if err := conn.Peer(peer).Ping(env.Context()); err != nil {
		return fmt.Errorf("pinging %s: %w", peer, err)
	}
	return nil
}

func runBusID(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	id, err := conn.GetBusID(env.Context())
	if err != nil {
		return fmt.Errorf("getting bus id: %w", err)
	}
	fmt.Println(id)
	return nil
}

func runListen(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	w := conn.Watch()
	defer w.Close()
	if _, err := w.Match(env.Context(), dbuskit.MatchAllSignals()); err != nil {
		return fmt.Errorf("installing match rule: %w", err)
	}
	fmt.Println("Listening for signals...")
	for {
		select {
		case <-env.Context().Done():
			return nil
		case n, ok := <-w.Chan():
			if !ok {
				return nil
			}
			fmt.Printf("Signal %s.%s from %s on object %s:\n  %# v\n\n", n.Interface, n.Name, n.Sender, n.Path, pretty.Formatter(n.Args))
			if n.Overflow {
				fmt.Println("OVERFLOW, some signals lost")
			}
		}
	}
}

var generateArgs struct {
	PackageName string `flag:"package,default=client,Package name to output"`
	OutFile     string `flag:"out,default=gen.go,Output file path"`
}

func findInterface(ctx context.Context, conn *dbuskit.Conn, peer, wantName string) (*dbuskit.Interface, error) {
	for oi, err := range walkInterfaces(ctx, conn, peer, ".*", regexp.QuoteMeta(wantName)) {
		if err != nil {
			continue
		}
		fmt.Printf("Found definition of %s at %s\n", wantName, oi.Path)
		return oi.Interface, nil
	}
	return nil, nil
}

func runGenerate(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), time.Minute)
	defer cancel()

	var iface *dbuskit.Interface
	switch len(env.Args) {
	case 0:
		return env.Usagef("generate requires at least one argument.")
	case 1:
		names, err := conn.ListNames(ctx)
		if err != nil {
			return fmt.Errorf("listing peers: %w", err)
		}
		for _, peer := range names {
			if strings.HasPrefix(peer, ":") {
				continue
			}
			iface, _ = findInterface(ctx, conn, peer, env.Args[0])
			if iface != nil {
				break
			}
		}
		if iface == nil {
			return fmt.Errorf("could not find an object that implements %s on the bus", env.Args[0])
		}
	case 2:
		iface, err = findInterface(ctx, conn, env.Args[0], env.Args[1])
		if err != nil {
			return err
		}
		if iface == nil {
			return fmt.Errorf("peer %s does not have an object that implements %s", env.Args[0], env.Args[1])
		}
	}

	f, err := os.Create(generateArgs.OutFile)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", generateArgs.OutFile, err)
	}
	defer f.Close()
	fmt.Fprintf(f, "package %s\n\nimport (\n  \"context\"\n\n  \"github.com/darlinghq/darling-dbuskit\"\n)\n", generateArgs.PackageName)
	code, err := dbusgen.Interface(iface)
	if _, werr := f.WriteString(code); werr != nil {
		return fmt.Errorf("writing generated code: %w", werr)
	}
	if err != nil {
		return fmt.Errorf("generate interface %s: %w", iface.Name, err)
	}
	fmt.Printf("Wrote generated package to %s\n", generateArgs.OutFile)
	return nil
}

func runFdoIdle(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), 5*time.Second)
	defer cancel()
	svc := idle.New(conn)
	locked, err := svc.Locked(ctx)
	if err != nil {
		return fmt.Errorf("getting lock state: %w", err)
	}
	idleFor, err := svc.IdleTime(ctx)
	if err != nil {
		return fmt.Errorf("getting idle time: %w", err)
	}
	fmt.Println("locked:", locked)
	fmt.Println("idle for:", idleFor)
	return nil
}

func runFdoPower(env *command.Env) error {
	conn, err := busConn(env.Context())
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(env.Context(), 5*time.Second)
	defer cancel()
	svc := powermanagement.New(conn)
	canSuspend, err := svc.CanSuspend(ctx)
	if err != nil {
		return fmt.Errorf("getting suspend capability: %w", err)
	}
	canHibernate, err := svc.CanHibernate(ctx)
	if err != nil {
		return fmt.Errorf("getting hibernate capability: %w", err)
	}
	fmt.Println("can suspend:", canSuspend)
	fmt.Println("can hibernate:", canHibernate)
	return nil
}
