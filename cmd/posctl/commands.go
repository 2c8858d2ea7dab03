package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/mmynk/posclient/internal/app"
	"github.com/mmynk/posclient/internal/models"
	"github.com/mmynk/posclient/internal/pricing"
	"github.com/mmynk/posclient/internal/store"
)

var errUsage = errors.New("usage")

type cli struct {
	app *app.App

	mu  sync.Mutex
	out io.Writer
}

func (c *cli) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *cli) redirectToLogin() {
	c.printf("\nSession closed after inactivity. Log in again with: login -email E -password P\n")
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	name, rest := args[0], args[1:]
	switch name {
	case "login":
		return c.login(ctx, rest)
	case "logout":
		c.app.Logout(ctx)
		c.printf("Logged out.\n")
		return nil
	case "whoami":
		return c.whoami(ctx)
	case "menu":
		return c.menu(ctx, rest)
	case "areas":
		return c.areas(ctx)
	case "order":
		return c.order(ctx, rest)
	case "orders":
		return c.orders(ctx, rest)
	case "status":
		return c.status(ctx, rest)
	case "invoice":
		return c.invoice(ctx, rest)
	case "users":
		return c.users(ctx)
	case "shell":
		return c.shell(ctx, os.Stdin)
	case "help", "-h", "--help":
		return errUsage
	}
	return fmt.Errorf("unknown command %q", name)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := fs.Parse(args); err != nil || *email == "" || *password == "" {
		return errUsage
	}
	if err := c.app.Login(ctx, *email, *password, *remember); err != nil {
		return err
	}
	u := c.app.Session.User()
	c.printf("Signed in as %s (%s), %s session.\n", u.Name, u.Role, c.app.Session.Mode())
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if err := c.app.Session.FetchUser(ctx); err != nil {
		return err
	}
	u := c.app.Session.User()
	c.printf("%s <%s> role=%s mode=%s\n", u.Name, u.Email, u.Role, c.app.Session.Mode())
	return nil
}

func (c *cli) menu(ctx context.Context, args []string) error {
	fs := newFlags("menu")
	category := fs.Int64("category", 0, "category id")
	search := fs.String("search", "", "name filter")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if err := c.app.Catalog.FetchMenu(ctx); err != nil {
		return err
	}
	c.app.Catalog.SetCategoryFilter(*category)
	c.app.Catalog.SetSearch(*search)
	c.printProducts(c.app.Catalog.FilteredProducts())
	return nil
}

func (c *cli) printProducts(products []models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.CategoryName, pricing.Format(p.Price.Float(), pricing.DefaultSymbol))
	}
	w.Flush()
}

func (c *cli) areas(ctx context.Context) error {
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if err := c.app.Cart.FetchAreas(ctx); err != nil {
		return err
	}
	selected, _ := c.app.Cart.AreaID()
	for _, a := range c.app.Cart.Areas() {
		marker := " "
		if a.ID == selected {
			marker = "*"
		}
		c.printf("%s %d\t%s\n", marker, a.ID, a.Name)
	}
	return nil
}

// itemFlags collects repeated -item values.
type itemFlags []string

func (f *itemFlags) String() string     { return strings.Join(*f, ",") }
func (f *itemFlags) Set(v string) error { *f = append(*f, v); return nil }

// parseItem reads ID[:QTY[:NOTES]].
func parseItem(v string) (id int64, qty int, notes string, err error) {
	parts := strings.SplitN(v, ":", 3)
	id, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("invalid product id in %q", v)
	}
	qty = 1
	if len(parts) > 1 && parts[1] != "" {
		qty, err = strconv.Atoi(parts[1])
		if err != nil || qty < 1 {
			return 0, 0, "", fmt.Errorf("invalid quantity in %q", v)
		}
	}
	if len(parts) > 2 {
		notes = parts[2]
	}
	return id, qty, notes, nil
}

func (c *cli) order(ctx context.Context, args []string) error {
	fs := newFlags("order")
	area := fs.Int64("area", 0, "service area id")
	table := fs.String("table", "", "table number")
	customer := fs.String("customer", "", "guest name")
	var items itemFlags
	fs.Var(&items, "item", "ID[:QTY[:NOTES]], repeatable")
	if err := fs.Parse(args); err != nil || len(items) == 0 {
		return errUsage
	}
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if err := c.app.Catalog.FetchMenu(ctx); err != nil {
		return err
	}

	cart := c.app.Cart
	cart.ClearCart()
	for _, v := range items {
		if err := c.addToCart(v); err != nil {
			return err
		}
	}
	cart.SelectArea(*area)
	cart.SetTable(*table)
	cart.SetCustomerName(*customer)
	return c.send(ctx)
}

func (c *cli) addToCart(v string) error {
	id, qty, notes, err := parseItem(v)
	if err != nil {
		return err
	}
	p, ok := c.app.Catalog.Product(id)
	if !ok {
		return fmt.Errorf("product %d is not on the menu", id)
	}
	for i := 0; i < qty; i++ {
		c.app.Cart.AddItem(p)
	}
	if notes != "" {
		c.app.Cart.SetNotes(id, notes)
	}
	return nil
}

func (c *cli) send(ctx context.Context) error {
	total := c.app.Cart.Total()
	count := c.app.Cart.ItemCount()
	if err := c.app.Cart.SendOrder(ctx); err != nil {
		if errors.Is(err, store.ErrNoArea) {
			return fmt.Errorf("%w: pick one with -area or the areas command", err)
		}
		return err
	}
	if count == 0 {
		c.printf("Cart is empty, nothing sent.\n")
		return nil
	}
	c.printf("Order sent: %d items, %s.\n", count, pricing.Format(total, pricing.DefaultSymbol))
	return nil
}

func (c *cli) orders(ctx context.Context, args []string) error {
	fs := newFlags("orders")
	status := fs.String("status", "", "only orders in this status")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if err := c.app.Orders.FetchOrders(ctx); err != nil {
		return err
	}
	orders := c.app.Orders.Orders()
	if *status != "" {
		orders = c.app.Orders.ByStatus(*status)
	}
	c.printOrders(orders)
	return nil
}

func (c *cli) printOrders(orders []models.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTABLE\tAREA\tSTATUS\tITEMS\tTOTAL")
	for _, o := range orders {
		table := o.TableNumber
		if o.TableDisplay != nil {
			table = *o.TableDisplay
		}
		n := 0
		for _, item := range o.Items {
			n += item.Quantity
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", o.ID, table, o.Area, o.Status, n, pricing.OrderTotal(o))
	}
	w.Flush()
}

func orderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q", s)
	}
	return id, nil
}

func (c *cli) status(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	id, err := orderID(args[0])
	if err != nil {
		return err
	}
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	if _, ok := c.app.Orders.Order(id); !ok {
		if err := c.app.Orders.FetchOrders(ctx); err != nil {
			return err
		}
	}
	if err := c.app.Orders.UpdateOrderStatus(ctx, id, args[1]); err != nil {
		return err
	}
	c.printf("Order %d is now %s.\n", id, args[1])
	return nil
}

func (c *cli) invoice(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	id, err := orderID(args[0])
	if err != nil {
		return err
	}
	fs := newFlags("invoice")
	dir := fs.String("dir", c.app.Config.DownloadDir, "output directory")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	if err := c.app.RequireAuth(); err != nil {
		return err
	}
	path, err := c.app.Orders.DownloadInvoice(ctx, id, *dir)
	if err != nil {
		return err
	}
	c.printf("Saved %s\n", path)
	return nil
}

func (c *cli) users(ctx context.Context) error {
	if err := c.app.Users.FetchUsers(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
	for _, u := range c.app.Users.Users() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.IsActive)
	}
	return w.Flush()
}

const shellHelp = `shell commands:
  add ID [QTY]     add a menu product to the cart
  dec ID           remove one unit
  rm ID            remove the line
  note ID TEXT     kitchen notes for a line
  table T          table number
  customer NAME    guest name
  area ID          service area
  cart             show the cart
  clear            empty the cart
  send             submit the cart
  quit             leave the shell
and every posctl command (login, orders, status, ...).
`

// shell reads commands line by line. Every line counts as user input for
// the idle watchdog.
func (c *cli) shell(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.printf("posctl shell. Type help for commands.\n> ")
	for scanner.Scan() {
		c.app.Session.Touch()
		args := strings.Fields(scanner.Text())
		if len(args) > 0 {
			if args[0] == "quit" || args[0] == "exit" {
				return nil
			}
			if err := c.shellCommand(ctx, args); err != nil {
				if errors.Is(err, errUsage) {
					c.printf("%s%s", usage, shellHelp)
				} else {
					c.printf("error: %v\n", err)
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		c.printf("> ")
	}
	return scanner.Err()
}

func (c *cli) shellCommand(ctx context.Context, args []string) error {
	cart := c.app.Cart
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return errUsage
		}
		if len(c.app.Catalog.Products()) == 0 {
			if err := c.app.Catalog.FetchMenu(ctx); err != nil {
				return err
			}
		}
		item := args[1]
		if len(args) > 2 {
			item += ":" + args[2]
		}
		if err := c.addToCart(item); err != nil {
			return err
		}
		return c.showCart()
	case "dec", "rm":
		if len(args) != 2 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[1])
		}
		if args[0] == "dec" {
			cart.DecreaseItem(id)
		} else {
			cart.RemoveItem(id)
		}
		return c.showCart()
	case "note":
		if len(args) < 3 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[1])
		}
		if !cart.SetNotes(id, strings.Join(args[2:], " ")) {
			return fmt.Errorf("product %d is not in the cart", id)
		}
		return nil
	case "table":
		cart.SetTable(strings.Join(args[1:], " "))
		return nil
	case "customer":
		cart.SetCustomerName(strings.Join(args[1:], " "))
		return nil
	case "area":
		if len(args) != 2 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid area id %q", args[1])
		}
		cart.SelectArea(id)
		return nil
	case "cart":
		return c.showCart()
	case "clear":
		cart.ClearCart()
		return nil
	case "send":
		if err := c.app.RequireAuth(); err != nil {
			return err
		}
		return c.send(ctx)
	case "help":
		return errUsage
	case "shell":
		return errors.New("already in a shell")
	}
	return c.run(ctx, args)
}

func (c *cli) showCart() error {
	cart := c.app.Cart
	c.mu.Lock()
	defer c.mu.Unlock()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, item := range cart.Items() {
		fmt.Fprintf(w, "%d\t%s\tx%d\t%s\t%s\n", item.Product.ID, item.Product.Name, item.Quantity,
			pricing.Format(pricing.LineTotal(item), pricing.DefaultSymbol), item.Notes)
	}
	area, _ := cart.AreaID()
	fmt.Fprintf(w, "\t%d items\t\t%s\ttable %q area %d\n", cart.ItemCount(),
		pricing.Format(cart.Total(), pricing.DefaultSymbol), cart.TableNumber(), area)
	return w.Flush()
}
