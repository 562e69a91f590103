package main

import (
	"flag"
	"fmt"

	"github.com/Hardikr439/BLE-communication/internal/identity"
	"github.com/Hardikr439/BLE-communication/pkg/mesh"
)

func runWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	configFlag := fs.String("config", "meshnode.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := loadConfigOrDefaults(*configFlag)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		fatal("Failed to open state store: %v", err)
	}

	nodeID, err := identity.LoadOrCreateNodeID(st)
	if err != nil {
		fatal("Failed to load node id: %v", err)
	}
	friendCode := mesh.NodeHashOf(nodeID).FriendCode()
	nickname := cfg.Identity.Nickname
	if nickname == "" {
		nickname = identity.LoadNickname(st, "Node-"+friendCode)
	}

	fmt.Printf("Node ID:     %s\n", nodeID)
	fmt.Printf("Friend code: %s\n", friendCode)
	fmt.Printf("Nickname:    %s\n", nickname)
}
