package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
	"github.com/flowdeck-dev/flowdeck/pkg/sdk"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	addr := os.Getenv("FLOWDECK_ADDR")
	if addr == "" {
		addr = "http://localhost:7300"
	}

	client := sdk.New(addr)
	if token := os.Getenv("FLOWDECK_TOKEN"); token != "" {
		client.SetToken(token)
	}

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "register":
		if len(args) < 3 {
			log.Fatal("Usage: flowdeck register <name> <email> <password>")
		}
		user, err := client.Register(args[0], args[1], args[2])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Registered %s. Export FLOWDECK_TOKEN=%s\n", user.Name, client.Token())

	case "login":
		if len(args) < 2 {
			log.Fatal("Usage: flowdeck login <email> <password>")
		}
		user, err := client.Login(args[0], args[1])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Welcome back %s. Export FLOWDECK_TOKEN=%s\n", user.Name, client.Token())

	case "tasks":
		tasks, err := client.Tasks()
		if err != nil {
			log.Fatal(err)
		}
		printJSON(tasks)

	case "create":
		if len(args) < 1 {
			log.Fatal("Usage: flowdeck create <title> [description]")
		}
		draft := sdk.TaskDraft{Title: args[0]}
		if len(args) > 1 {
			draft.Description = strings.Join(args[1:], " ")
		}
		task, err := client.CreateTask(draft)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(task)

	case "move":
		if len(args) < 3 {
			log.Fatal("Usage: flowdeck move <taskID> <status> <version>")
		}
		version, err := strconv.Atoi(args[2])
		if err != nil {
			log.Fatalf("Invalid version: %v", err)
		}
		submit(client, args[0], sdk.TaskUpdate{Status: &args[1], Version: version})

	case "assign":
		if len(args) < 3 {
			log.Fatal("Usage: flowdeck assign <taskID> <userID> <version>")
		}
		version, err := strconv.Atoi(args[2])
		if err != nil {
			log.Fatalf("Invalid version: %v", err)
		}
		submit(client, args[0], sdk.TaskUpdate{AssigneeID: &args[1], Version: version})

	case "smart-assign":
		if len(args) < 1 {
			log.Fatal("Usage: flowdeck smart-assign <taskID>")
		}
		task, err := client.SmartAssign(args[0])
		if err != nil {
			log.Fatal(err)
		}
		printJSON(task)

	case "del":
		if len(args) < 1 {
			log.Fatal("Usage: flowdeck del <taskID>")
		}
		if err := client.DeleteTask(args[0]); err != nil {
			log.Fatal(err)
		}
		fmt.Println("OK")

	case "users":
		users, err := client.Users()
		if err != nil {
			log.Fatal(err)
		}
		printJSON(users)

	case "activity":
		activities, err := client.Activities()
		if err != nil {
			log.Fatal(err)
		}
		for _, a := range activities {
			fmt.Printf("%s  %s %s\n", a.CreatedAt.Local().Format("15:04:05"), a.UserName, a.Description)
		}

	case "watch":
		watch(client)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

// submit sends an edit and, when it comes back as a conflict, walks the
// user through choosing which version to keep.
func submit(client *sdk.Client, taskID string, update sdk.TaskUpdate) {
	task, err := client.UpdateTask(taskID, update)
	if err == nil {
		printJSON(task)
		return
	}

	conflict, ok := err.(*sdk.Conflict)
	if !ok {
		log.Fatal(err)
	}

	resolver := sdk.NewResolver(client)
	if err := resolver.Detect(conflict); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Conflict: the task was modified by another user.")
	fmt.Println("--- current (server) ---")
	printJSON(conflict.Payload.Current)
	fmt.Println("--- proposed (your edit) ---")
	printJSON(conflict.Payload.Proposed)
	fmt.Print("Keep which version? [current/proposed/quit]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	choice := sdk.ChoiceCurrent
	switch strings.TrimSpace(strings.ToLower(answer)) {
	case "proposed", "p":
		choice = sdk.ChoiceProposed
	case "current", "c":
	default:
		resolver.Dismiss()
		fmt.Println("Left the server's version in place.")
		return
	}

	resolved, err := resolver.Resolve(choice)
	if err != nil {
		log.Fatal(err)
	}
	printJSON(resolved)
}

// watch streams live board events to stdout until interrupted.
func watch(client *sdk.Client) {
	board := sdk.NewBoardState()

	tasks, err := client.Tasks()
	if err != nil {
		log.Fatal(err)
	}
	activities, err := client.Activities()
	if err != nil {
		log.Fatal(err)
	}
	board.Load(tasks, activities)
	fmt.Printf("Baseline: %d tasks. Watching for changes...\n", len(tasks))

	sub, err := client.Subscribe(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer sub.Close()

	for ev := range sub.Events {
		if err := board.Apply(ev); err != nil {
			log.Printf("Warning: could not apply %s event: %v", ev.Kind, err)
			continue
		}
		switch ev.Kind {
		case schema.EventActivityAdded:
			feed := board.Activities()
			if len(feed) > 0 {
				fmt.Printf("%s  %s %s\n", feed[0].CreatedAt.Local().Format("15:04:05"), feed[0].UserName, feed[0].Description)
			}
		default:
			fmt.Printf("[%s]\n", ev.Kind)
		}
	}
	fmt.Println("Stream closed. Reconnect to re-baseline.")
}

func printUsage() {
	fmt.Println("Flowdeck CLI - Interface for the flowdeck board daemon")
	fmt.Println("\nUsage:")
	fmt.Println("  flowdeck register <name> <email> <password>")
	fmt.Println("  flowdeck login <email> <password>")
	fmt.Println("  flowdeck tasks")
	fmt.Println("  flowdeck create <title> [description]")
	fmt.Println("  flowdeck move <taskID> <status> <version>")
	fmt.Println("  flowdeck assign <taskID> <userID> <version>")
	fmt.Println("  flowdeck smart-assign <taskID>")
	fmt.Println("  flowdeck del <taskID>")
	fmt.Println("  flowdeck users")
	fmt.Println("  flowdeck activity")
	fmt.Println("  flowdeck watch")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  FLOWDECK_ADDR    Address of the daemon (default: http://localhost:7300)")
	fmt.Println("  FLOWDECK_TOKEN   Session token from register/login")
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
