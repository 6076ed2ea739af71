package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	serveradapter "github.com/hylla/cotiza/internal/adapters/server"
	"github.com/hylla/cotiza/internal/adapters/server/common"
	"github.com/hylla/cotiza/internal/app"
	"github.com/hylla/cotiza/internal/tui"
)

// runBoard opens the TUI over the configured tenant's quotes.
func runBoard(ctx context.Context, env *runtimeEnv) error {
	tenantID, err := env.requireTenant()
	if err != nil {
		return err
	}
	tenant, err := env.svc.EnsureTenant(ctx, tenantID, env.cfg.Tenant.DefaultName)
	if err != nil {
		return fmt.Errorf("ensure tenant %q: %w", tenantID, err)
	}

	notify, notices := tui.NoticeChannel(16)
	board := app.NewBoardReconciler(tenant.ID, env.repo, notify, app.WithBoardLogger(env.logger.Sink()))
	m := tui.NewModel(board, notices, tui.WithContext(ctx), tui.WithTitle(env.opts.appName))

	env.logger.Info("starting tui program loop", "tenant", tenant.ID)
	_, err = programFactory(m).Run()
	// Writes dispatched before quit finish before the store closes.
	board.Wait()
	if err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// newServeCommand starts the REST and MCP server.
func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID := strings.TrimSpace(env.tenantID)
				if tenantID != "" {
					if _, err := env.svc.EnsureTenant(ctx, tenantID, env.cfg.Tenant.DefaultName); err != nil {
						return fmt.Errorf("ensure tenant %q: %w", tenantID, err)
					}
				}
				cfg := serveradapter.Config{
					HTTPBind:      env.cfg.Server.Bind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					ServerName:    env.opts.appName,
					ServerVersion: version,
					DefaultTenant: tenantID,
				}
				if strings.TrimSpace(bind) != "" {
					cfg.HTTPBind = bind
				}
				env.logger.Info("serving", "bind", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
				return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
					Service: env.api,
					Ready:   env.repo.Ping,
					Logger:  env.logger.Sink(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (defaults to [server] bind)")
	return cmd
}

// newTenantCommand groups tenant provisioning.
func newTenantCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Provision and list tenants"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create <id> [name]",
			Short: "Create a tenant and its zeroed quote counter",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					req := common.CreateTenantRequest{ID: args[0], Name: args[0]}
					if len(args) == 2 {
						req.Name = args[1]
					}
					tenant, err := env.api.CreateTenant(ctx, req)
					if err != nil {
						return err
					}
					return printOne(stdout, opts.jsonOutput, tenant, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "created tenant %s (%s)\n", tenant.ID, tenant.Name)
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List tenants",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					tenants, err := env.api.ListTenants(ctx)
					if err != nil {
						return err
					}
					return printTable(stdout, opts.jsonOutput, tenants, []string{"ID", "NAME", "CREATED"}, func(t common.Tenant) []string {
						return []string{t.ID, t.Name, t.CreatedAt.Format(time.DateOnly)}
					})
				})
			},
		},
	)
	return cmd
}

// newClientCommand groups client catalog commands.
func newClientCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var req common.CreateClientRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				in := req
				in.TenantID = tenantID
				client, err := env.api.CreateClient(ctx, in)
				if err != nil {
					return err
				}
				return printOne(stdout, opts.jsonOutput, client, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "added client %s (%s)\n", client.ID, client.Name)
				})
			})
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "client name")
	add.Flags().StringVar(&req.Email, "email", "", "contact email")
	add.Flags().StringVar(&req.Company, "company", "", "company name")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				clients, err := env.api.ListClients(ctx, tenantID)
				if err != nil {
					return err
				}
				return printTable(stdout, opts.jsonOutput, clients, []string{"ID", "NAME", "EMAIL", "COMPANY"}, func(c common.Client) []string {
					return []string{c.ID, c.Name, c.Email, c.Company}
				})
			})
		},
	}

	cmd := &cobra.Command{Use: "client", Short: "Manage clients"}
	cmd.AddCommand(add, list)
	return cmd
}

// newProductCommand groups product catalog commands.
func newProductCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var req common.CreateProductRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a catalog product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				in := req
				in.TenantID = tenantID
				product, err := env.api.CreateProduct(ctx, in)
				if err != nil {
					return err
				}
				return printOne(stdout, opts.jsonOutput, product, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "added product %s (%s @ %s)\n", product.ID, product.Name, product.UnitPrice)
				})
			})
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "product name")
	add.Flags().StringVar(&req.SKU, "sku", "", "stock keeping unit")
	add.Flags().StringVar(&req.UnitPrice, "price", "", "unit price such as 19.99")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("price")

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				products, err := env.api.ListProducts(ctx, tenantID)
				if err != nil {
					return err
				}
				return printTable(stdout, opts.jsonOutput, products, []string{"ID", "SKU", "NAME", "PRICE"}, func(p common.Product) []string {
					return []string{p.ID, p.SKU, p.Name, p.UnitPrice}
				})
			})
		},
	}

	cmd := &cobra.Command{Use: "product", Short: "Manage the product catalog"}
	cmd.AddCommand(add, list)
	return cmd
}

// newQuoteCommand groups quote commands.
func newQuoteCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{Use: "quote", Short: "Create and manage quotes"}
	cmd.AddCommand(
		newQuoteCreateCommand(opts, stdout, stderr),
		&cobra.Command{
			Use:   "list",
			Short: "List quotes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					tenantID, err := env.requireTenant()
					if err != nil {
						return err
					}
					quotes, err := env.api.ListQuotes(ctx, tenantID)
					if err != nil {
						return err
					}
					return printTable(stdout, opts.jsonOutput, quotes, []string{"NUMBER", "STATUS", "CLIENT", "TOTAL"}, func(q common.Quote) []string {
						return []string{q.Number, q.Status, q.ClientID, q.Total}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "show <id-or-number>",
			Short: "Show one quote",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					tenantID, err := env.requireTenant()
					if err != nil {
						return err
					}
					quote, err := env.api.GetQuote(ctx, tenantID, args[0])
					if err != nil {
						return err
					}
					return printOne(stdout, opts.jsonOutput, quote, func(w io.Writer) { writeQuote(w, quote) })
				})
			},
		},
		&cobra.Command{
			Use:   "status <id-or-number> <status>",
			Short: "Set a quote's status",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					tenantID, err := env.requireTenant()
					if err != nil {
						return err
					}
					quote, err := env.api.SetQuoteStatus(ctx, common.SetQuoteStatusRequest{
						TenantID: tenantID,
						QuoteID:  args[0],
						Status:   args[1],
					})
					if err != nil {
						return err
					}
					return printOne(stdout, opts.jsonOutput, quote, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "%s is now %s\n", quote.Number, quote.Status)
					})
				})
			},
		},
		newQuotePDFCommand(opts, stdout, stderr),
		&cobra.Command{
			Use:   "expire",
			Short: "Mark open quotes past their expiry date as expired",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
					tenantID, err := env.requireTenant()
					if err != nil {
						return err
					}
					count, err := env.svc.ExpireDueQuotes(ctx, tenantID)
					if err != nil {
						return err
					}
					return printOne(stdout, opts.jsonOutput, map[string]int{"expired": count}, func(w io.Writer) {
						_, _ = fmt.Fprintf(w, "expired %d quote(s)\n", count)
					})
				})
			},
		},
	)
	return cmd
}

// newQuoteCreateCommand creates one draft quote with an allocated number.
func newQuoteCreateCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		clientID string
		items    []string
		taxRate  string
		notes    string
	)
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a draft quote",
		Example: "  cotiza quote create --client c1 --item p1:2 --item p2:1:99.50",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := parseItemFlags(items)
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				quote, err := env.api.CreateQuote(ctx, common.CreateQuoteRequest{
					TenantID: tenantID,
					ClientID: clientID,
					Items:    lines,
					TaxRate:  taxRate,
					Notes:    notes,
				})
				if err != nil {
					if errors.Is(err, common.ErrAllocationFailed) {
						return fmt.Errorf("%w; no quote was created, retry the command", err)
					}
					return err
				}
				return printOne(stdout, opts.jsonOutput, quote, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "created %s for %s, total %s\n", quote.Number, quote.ClientID, quote.Total)
				})
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringArrayVar(&items, "item", nil, "line as product_id:quantity[:unit_price] (repeatable)")
	cmd.Flags().StringVar(&taxRate, "tax", "", "tax rate override such as 0.16")
	cmd.Flags().StringVar(&notes, "notes", "", "notes printed on the quote")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

// newQuotePDFCommand writes one quote as a PDF document.
func newQuotePDFCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pdf <id-or-number>",
		Short: "Render a quote to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				number, doc, err := env.api.RenderQuotePDF(ctx, tenantID, args[0])
				if err != nil {
					return err
				}
				path := strings.TrimSpace(out)
				if path == "" {
					path = number + ".pdf"
				}
				if path == "-" {
					_, err := stdout.Write(doc)
					return err
				}
				if err := os.WriteFile(path, doc, 0o644); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}
				_, _ = fmt.Fprintf(stdout, "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <number>.pdf, - for stdout)")
	return cmd
}

// newInsightsCommand prints the tenant business summary.
func newInsightsCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Summarize quote activity for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, stderr, false, func(ctx context.Context, env *runtimeEnv) error {
				tenantID, err := env.requireTenant()
				if err != nil {
					return err
				}
				insight, err := env.api.Insights(ctx, tenantID)
				if err != nil {
					return err
				}
				return printOne(stdout, opts.jsonOutput, insight, func(w io.Writer) {
					_, _ = fmt.Fprintln(w, strings.TrimSpace(insight.Summary))
				})
			})
		},
	}
}

// parseItemFlags parses product_id:quantity[:unit_price] values.
func parseItemFlags(raw []string) ([]common.QuoteItemRequest, error) {
	out := make([]common.QuoteItemRequest, 0, len(raw))
	for _, value := range raw {
		parts := strings.Split(strings.TrimSpace(value), ":")
		if len(parts) < 2 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid --item %q: want product_id:quantity[:unit_price]", value)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || qty < 1 {
			return nil, fmt.Errorf("invalid --item %q: quantity must be a positive integer", value)
		}
		item := common.QuoteItemRequest{ProductID: strings.TrimSpace(parts[0]), Quantity: qty}
		if len(parts) == 3 {
			item.UnitPrice = strings.TrimSpace(parts[2])
		}
		out = append(out, item)
	}
	return out, nil
}

// printOne writes v as JSON or through the text callback.
func printOne(w io.Writer, asJSON bool, v any, text func(io.Writer)) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// printTable writes rows as JSON or an aligned table.
func printTable[T any](w io.Writer, asJSON bool, rows []T, header []string, cells func(T) []string) error {
	if asJSON {
		if rows == nil {
			rows = []T{}
		}
		return printOne(w, true, rows, nil)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(cells(row), "\t"))
	}
	return tw.Flush()
}

// writeQuote prints a plain-text quote summary.
func writeQuote(w io.Writer, q common.Quote) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", q.Number, q.Status)
	if q.Status != q.BoardStatus {
		_, _ = fmt.Fprintf(w, "board column: %s\n", q.BoardStatus)
	}
	_, _ = fmt.Fprintf(w, "client: %s\n", q.ClientID)
	if q.ExpiresAt != nil {
		_, _ = fmt.Fprintf(w, "expires: %s\n", q.ExpiresAt.Format(time.DateOnly))
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "ITEM\tQTY\tUNIT\tAMOUNT\t")
	for _, item := range q.Items {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", item.Description, item.Quantity, item.UnitPrice, item.Amount)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "subtotal %s  tax %s  total %s\n", q.Subtotal, q.Tax, q.Total)
	if notes := strings.TrimSpace(q.Notes); notes != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", notes)
	}
}
