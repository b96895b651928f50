package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/inventory/internal/actions"
	"github.com/atvirokodosprendimai/inventory/internal/application"
	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "output raw JSON"} }

// withRemote loads the stored CLI config and runs fn against the server it points at.
func withRemote(fn func(ctx context.Context, c *cli.Command, r *remote) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		r := newRemote(cfg)
		defer func() { _ = r.Close() }()
		return fn(ctx, c, r)
	}
}

// output prints v as JSON when --json is set and with pretty otherwise.
func output[T any](c *cli.Command, v T, pretty func(T)) error {
	if c.Bool("json") {
		return printJSON(v)
	}
	pretty(v)
	return nil
}

func requireArg(c *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// parsePairs reads repeated key=value flags.
func parsePairs(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		kv := strings.SplitN(v, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", v)
		}
		out[strings.TrimSpace(kv[0])] = kv[1]
	}
	return out, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store the CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: defaultServer},
					&cli.StringFlag{Name: "socket", Value: defaultSocket},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					if cfg.Transport != "uds" && cfg.Transport != "http" {
						return fmt.Errorf("transport must be uds or http")
					}
					r := newRemote(cfg)
					defer func() { _ = r.Close() }()
					out, err := r.login(ctx, c.String("email"), c.String("password"), c.String("token-name"))
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show the authenticated user",
				Flags: []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					out, err := r.whoami(ctx)
					if err != nil {
						return err
					}
					return output(c, out, func(m map[string]any) {
						printKV([][2]string{{"id", fmt.Sprint(m["id"])}, {"email", fmt.Sprint(m["email"])}})
					})
				}),
			},
			{
				Name:  "logout",
				Usage: "Forget the stored token",
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					if err := r.logout(ctx); err != nil {
						return err
					}
					r.cfg.Token = ""
					if err := saveConfig(r.cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				}),
			},
		},
	}
}

func classesCommand() *cli.Command {
	return &cli.Command{
		Name:  "classes",
		Usage: "Browse the class hierarchy",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List classes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "name filter"},
					&cli.BoolFlag{Name: "abstract", Usage: "include abstract classes"},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					out, err := r.classes(ctx, c.String("q"), c.Bool("abstract"))
					if err != nil {
						return err
					}
					return output(c, out, printClasses)
				}),
			},
		},
	}
}

func objectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "objects",
		Usage: "Inventory objects",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show one object",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "object id")
					if err != nil {
						return err
					}
					out, err := r.object(ctx, id)
					if err != nil {
						return err
					}
					return output(c, out, printObject)
				}),
			},
			{
				Name:      "children",
				Usage:     "List the children of an object, -1 for the root",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "special"}, jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "object id")
					if err != nil {
						return err
					}
					out, err := r.children(ctx, id, c.Bool("special"))
					if err != nil {
						return err
					}
					return output(c, out, printObjects)
				}),
			},
			{
				Name:  "search",
				Usage: "Search objects by name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "class"},
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit", Value: 100},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					out, err := r.search(ctx, c.String("class"), c.String("q"), c.Int("limit"))
					if err != nil {
						return err
					}
					return output(c, out, printObjects)
				}),
			},
			{
				Name:  "create",
				Usage: "Create an object",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "class", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "parent", Usage: "parent id, empty for the root"},
					&cli.StringFlag{Name: "template"},
					&cli.StringSliceFlag{Name: "attr", Usage: "key=value, repeatable"},
					&cli.BoolFlag{Name: "special", Usage: "create as a special child"},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					attrs, err := parsePairs(c.StringSlice("attr"))
					if err != nil {
						return err
					}
					params := actions.Parameters{
						"class":      c.String("class"),
						"name":       c.String("name"),
						"attributes": attrs,
						"templateId": c.String("template"),
					}
					if parentID := c.String("parent"); parentID != "" {
						parent, err := r.object(ctx, parentID)
						if err != nil {
							return err
						}
						params["parentClassName"], params["parentId"] = parent.ClassName, parent.ID
					}
					actionID := actions.ActionNewBusinessObject
					if c.Bool("special") {
						actionID = actions.ActionNewSpecialBusinessObject
					}
					return runAction(ctx, c, r, actionID, params)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete an object and its subtree",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "release", Usage: "release relationships first"}, jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "object id")
					if err != nil {
						return err
					}
					obj, err := r.object(ctx, id)
					if err != nil {
						return err
					}
					return runAction(ctx, c, r, actions.ActionDeleteBusinessObject, actions.Parameters{
						"class": obj.ClassName, "id": obj.ID, "releaseRelationships": c.Bool("release"),
					})
				}),
			},
			{
				Name:      "move",
				Usage:     "Move an object under another parent",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "to", Required: true, Usage: "new parent id"}, jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "object id")
					if err != nil {
						return err
					}
					obj, err := r.object(ctx, id)
					if err != nil {
						return err
					}
					target, err := r.object(ctx, c.String("to"))
					if err != nil {
						return err
					}
					return runAction(ctx, c, r, actions.ActionMoveBusinessObject, actions.Parameters{
						"class": obj.ClassName, "id": obj.ID, "targetClass": target.ClassName, "targetId": target.ID,
					})
				}),
			},
		},
	}
}

func runAction(ctx context.Context, c *cli.Command, r *remote, actionID string, params actions.Parameters) error {
	resp, err := r.run(ctx, actionID, params)
	if err != nil {
		return err
	}
	return output(c, resp, printResponse)
}

func actionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "actions",
		Usage: "List and run inventory actions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the actions you may run",
				Flags: []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					out, err := r.listActions(ctx)
					if err != nil {
						return err
					}
					return output(c, out, printActions)
				}),
			},
			{
				Name:      "run",
				Usage:     "Run an action",
				ArgsUsage: "<action-id>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "param", Usage: "name=value, repeatable"},
					&cli.StringSliceFlag{Name: "attr", Usage: "attribute key=value, repeatable"},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					actionID, err := requireArg(c, "action id")
					if err != nil {
						return err
					}
					raw, err := parsePairs(c.StringSlice("param"))
					if err != nil {
						return err
					}
					params := actions.Parameters{}
					for k, v := range raw {
						params[k] = v
					}
					if attrs := c.StringSlice("attr"); len(attrs) > 0 {
						parsed, err := parsePairs(attrs)
						if err != nil {
							return err
						}
						params["attributes"] = parsed
					}
					return runAction(ctx, c, r, actionID, params)
				}),
			},
		},
	}
}

func physicalCommand() *cli.Command {
	return &cli.Command{
		Name:  "physical",
		Usage: "Physical connections",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Connect two endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "a", Required: true, Usage: "endpoint A id"},
					&cli.StringFlag{Name: "b", Required: true, Usage: "endpoint B id"},
					&cli.StringFlag{Name: "class", Required: true, Usage: "connection class, e.g. OpticalLink"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "template"},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					a, err := r.object(ctx, c.String("a"))
					if err != nil {
						return err
					}
					b, err := r.object(ctx, c.String("b"))
					if err != nil {
						return err
					}
					return runAction(ctx, c, r, actions.ActionNewPhysicalConnection, actions.Parameters{
						"endpointAClass":  a.ClassName,
						"endpointAId":     a.ID,
						"endpointBClass":  b.ClassName,
						"endpointBId":     b.ID,
						"name":            c.String("name"),
						"connectionClass": c.String("class"),
						"templateId":      c.String("template"),
					})
				}),
			},
			{
				Name:      "path",
				Usage:     "Trace the physical path from a port",
				ArgsUsage: "<port-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "port id")
					if err != nil {
						return err
					}
					out, err := r.physicalPath(ctx, id)
					if err != nil {
						return err
					}
					return output(c, out, printPath)
				}),
			},
			{
				Name:      "tree",
				Usage:     "Show every branch reachable from a port",
				ArgsUsage: "<port-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "port id")
					if err != nil {
						return err
					}
					out, err := r.physicalTree(ctx, id)
					if err != nil {
						return err
					}
					return output(c, out, printTree)
				}),
			},
		},
	}
}

func mirrorsCommand() *cli.Command {
	multiple := func() cli.Flag { return &cli.BoolFlag{Name: "multiple", Usage: "use multiple mirrors"} }
	return &cli.Command{
		Name:  "mirrors",
		Usage: "Port mirroring on a device",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "Show the mirrors of every port",
				ArgsUsage: "<device-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "device id")
					if err != nil {
						return err
					}
					out, err := r.mirrors(ctx, id)
					if err != nil {
						return err
					}
					return output(c, out, printPortMirrors)
				}),
			},
			{
				Name:      "suggest",
				Usage:     "Suggest mirrors for the free ports",
				ArgsUsage: "<device-id>",
				Flags:     []cli.Flag{multiple(), jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "device id")
					if err != nil {
						return err
					}
					if c.Bool("multiple") {
						var out application.MultipleMirrorSuggestion
						if err := r.suggest(ctx, id, true, &out); err != nil {
							return err
						}
						return output(c, out, printMultipleSuggestion)
					}
					var out application.MirrorSuggestion
					if err := r.suggest(ctx, id, false, &out); err != nil {
						return err
					}
					return output(c, out, printSuggestion)
				}),
			},
			{
				Name:      "apply",
				Usage:     "Create the suggested mirrors",
				ArgsUsage: "<device-id>",
				Flags:     []cli.Flag{multiple(), jsonFlag()},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					id, err := requireArg(c, "device id")
					if err != nil {
						return err
					}
					device, err := r.object(ctx, id)
					if err != nil {
						return err
					}
					actionID := actions.ActionMirrorFreePorts
					if c.Bool("multiple") {
						actionID = actions.ActionMirrorFreePortsMultiple
					}
					return runAction(ctx, c, r, actionID, actions.Parameters{"class": device.ClassName, "id": device.ID})
				}),
			},
		},
	}
}

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Activity log",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent activity",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "object", Usage: "only entries about this object"},
					&cli.StringFlag{Name: "type", Usage: "activity type, e.g. inventory.object.create"},
					&cli.IntFlag{Name: "limit", Value: 50},
					jsonFlag(),
				},
				Action: withRemote(func(ctx context.Context, c *cli.Command, r *remote) error {
					out, err := r.activity(ctx, c.String("object"), c.String("type"), c.Int("limit"))
					if err != nil {
						return err
					}
					return output(c, out, printActivity)
				}),
			},
		},
	}
}
