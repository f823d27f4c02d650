package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/atinyakov/EnrollKeeper/internal/client"
)

var (
	version   string
	buildDate string
)

// run executes one command against the server and prints the result.
func run(ctx context.Context, c *client.Client, args []string) error {
	switch args[0] {
	case "register":
		if len(args) < 3 {
			return fmt.Errorf("usage: register <username> <password>")
		}
		id, err := c.Register(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s with id %d\n", args[1], id)
	case "assign":
		if len(args) < 3 {
			return fmt.Errorf("usage: assign <username> <course> [price]")
		}
		price := ""
		if len(args) > 3 {
			price = args[3]
		}
		entry, err := c.Assign(ctx, args[1], args[2], price)
		if err != nil {
			return err
		}
		printJSON(entry)
	case "verify":
		if len(args) < 3 {
			return fmt.Errorf("usage: verify <username> <password>")
		}
		res, err := c.Verify(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		if !res.Matched {
			fmt.Println("Credentials do not match")
			return nil
		}
		printJSON(res.Enrollments)
	case "courses":
		courses, err := c.Courses(ctx)
		if err != nil {
			return err
		}
		for _, name := range courses {
			fmt.Println(name)
		}
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// repl runs the interactive shell loop. Course names with spaces are
// passed quoted with '|' in place of spaces, e.g. Основы|Git.
func repl(ctx context.Context, c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("enrollkeeper> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		for i := range args {
			args[i] = strings.ReplaceAll(args[i], "|", " ")
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, register <user> <password>, assign <user> <course> [price], verify <user> <password>, courses, exit")
		case "exit":
			fmt.Println("Bye")
			return
		default:
			if err := run(ctx, c, args); err != nil {
				fmt.Println(err)
			}
		}
	}
}

// main parses command-line flags and dispatches a single command or the shell.
func main() {
	var (
		cmd      string
		baseURL  string
		login    string
		password string
		course   string
		price    string
		showVer  bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: register | assign | verify | courses | shell")
	flag.StringVar(&baseURL, "url", "http://localhost:3000", "server base URL")
	flag.StringVar(&login, "login", "", "username")
	flag.StringVar(&password, "password", "", "password")
	flag.StringVar(&course, "course", "", "course name for assign")
	flag.StringVar(&price, "price", "", "price label for assign")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("EnrollKeeper Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	ctx := context.Background()
	c := client.New(baseURL)

	var args []string
	switch cmd {
	case "shell":
		repl(ctx, c)
		return
	case "register", "verify":
		if login == "" {
			log.Fatal("please provide -login=username")
		}
		args = []string{cmd, login, password}
	case "assign":
		if login == "" || course == "" {
			log.Fatal("please provide -login=username and -course=name")
		}
		args = []string{cmd, login, course, price}
	case "courses":
		args = []string{cmd}
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err := run(ctx, c, args); err != nil {
		log.Fatal(err)
	}
}
