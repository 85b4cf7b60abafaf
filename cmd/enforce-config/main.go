package main

import (
	"fmt"
	"os"

	"github.com/oarkflow/enforce"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	case "explain":
		handleExplain()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("enforce-config - Policy bundle tool for enforce")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  enforce-config convert <input> <output>                         - Convert between formats")
	fmt.Println("  enforce-config validate <file>                                  - Validate a policy bundle")
	fmt.Println("  enforce-config stats <file>                                     - Show bundle statistics")
	fmt.Println("  enforce-config check <file> <policy> <subject> <path> <perm>    - Evaluate a point and subtree query")
	fmt.Println("  enforce-config explain <file> <policy> <subject> <path> <perm>  - Trace a point decision")
	fmt.Println()
	fmt.Println("Supported formats: .policy, .dsl, .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: enforce-config convert <input> <output>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	if err := cfg.SaveFile(os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: enforce-config validate <file>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Valid")
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: enforce-config stats <file>")
		os.Exit(1)
	}
	st := loadConfig(os.Args[2]).Stats()
	fmt.Printf("Policies:  %d\n", st.Policies)
	fmt.Printf("Entries:   %d\n", st.Entries)
	fmt.Printf("Subjects:  %d\n", st.Subjects)
	fmt.Printf("Paths:     %d\n", st.Paths)
}

func handleCheck() {
	if len(os.Args) < 7 {
		fmt.Println("Usage: enforce-config check <file> <policy> <subject> <path> <perm>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	policy := cfg.FindPolicy(os.Args[3])
	if policy == nil {
		fmt.Printf("No policy %q in bundle\n", os.Args[3])
		os.Exit(1)
	}
	path, err := enforce.ParseResourcePath(os.Args[5])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	enforcer, err := enforce.Compile(policy)
	if err != nil {
		fmt.Printf("Error compiling policy: %v\n", err)
		os.Exit(1)
	}
	authCtx := enforce.NewAuthorizationContext(enforce.SubjectID(os.Args[4]))
	perm := enforce.Permission(os.Args[6])
	fmt.Printf("hasPermission:          %v\n", enforcer.HasPermission(authCtx, path, perm))
	fmt.Printf("hasSubtreePermission:   %v\n", enforcer.HasPermissionOnResourceOrAnySubresource(authCtx, path, perm))
	subjects := enforcer.SubjectsWithPartialPermission(path, enforce.NewPermissionSet(perm))
	fmt.Printf("subjectsWithPartial:    %v\n", subjects.Slice())
}

func handleExplain() {
	if len(os.Args) < 7 {
		fmt.Println("Usage: enforce-config explain <file> <policy> <subject> <path> <perm>")
		os.Exit(1)
	}
	cfg := loadConfig(os.Args[2])
	policy := cfg.FindPolicy(os.Args[3])
	if policy == nil {
		fmt.Printf("No policy %q in bundle\n", os.Args[3])
		os.Exit(1)
	}
	path, err := enforce.ParseResourcePath(os.Args[5])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	enforcer, err := enforce.Compile(policy)
	if err != nil {
		fmt.Printf("Error compiling policy: %v\n", err)
		os.Exit(1)
	}
	explainer, ok := enforcer.(enforce.Explainer)
	if !ok {
		fmt.Println("Enforcer does not support explain")
		os.Exit(1)
	}
	authCtx := enforce.NewAuthorizationContext(enforce.SubjectID(os.Args[4]))
	ex := explainer.Explain(authCtx, path, enforce.Permission(os.Args[6]))
	fmt.Printf("allowed: %v\n", ex.Allowed)
	for _, line := range ex.Trace {
		fmt.Printf("  %s\n", line)
	}
}

func loadConfig(path string) *enforce.Config {
	cfg, err := enforce.NewConfigLoader().LoadFile(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
