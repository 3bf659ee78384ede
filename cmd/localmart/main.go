package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"localmart/internal/api"
	"localmart/internal/config"
	"localmart/internal/core"
	"localmart/internal/store"
)

func main() {
	config.LoadConfig()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Client starting in DEBUG mode")
	}

	cmd := flag.String("cmd", "", "Command: register|login|logout|me|stores|search|setlocation|locate|chats|open|send|users|newchat|newstore")
	email := flag.String("email", "", "Email (register/login)")
	password := flag.String("password", "", "Password (register/login)")
	username := flag.String("username", "", "Username (register)")
	query := flag.String("query", "", "Search query (search)")
	placeID := flag.String("place-id", "", "Place ID (setlocation)")
	placeDesc := flag.String("place", "", "Place description (setlocation/newstore)")
	conversation := flag.String("conversation", "", "Conversation ID (open/send)")
	receiver := flag.String("receiver", "", "Receiver user ID (newchat/send)")
	text := flag.String("text", "", "Message text (send)")
	storeName := flag.String("store-name", "", "Store name (newstore)")
	description := flag.String("description", "", "Store description (newstore)")
	phone := flag.String("phone", "", "Store phone number (newstore)")
	category := flag.String("category", "", "Store category (newstore)")
	image := flag.String("image", "", "Path to the store logo image (newstore)")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize local storage: %v", err)
	}
	defer dbStore.Close()

	client := api.NewClient(config.AppConfig.ServerURL, time.Duration(config.AppConfig.HTTPTimeoutSeconds)*time.Second)
	places := core.NewPlacesService(config.AppConfig.PlacesBaseURL, config.AppConfig.PlacesAPIKey)

	session := core.NewSessionService(client, dbStore)
	if err := session.Restore(); err != nil {
		log.Printf("Could not restore previous session: %v", err)
	}

	location := core.NewLocationService(session, client, places, envLocator{})
	feed := core.NewFeedService(session, client)
	chat := core.NewChatService(session, client)
	seller := core.NewSellerService(session, client)

	ctx := context.Background()

	switch *cmd {
	case "register":
		run(session.Register(ctx, *username, *email, *password))
		fmt.Println("Registration successful. Please log in.")
	case "login":
		run(session.Login(ctx, *email, *password))
		profile, _ := session.CurrentUser()
		fmt.Printf("Logged in as %s (%s)\n", profile.Username, profile.Role)
	case "logout":
		session.Logout()
		fmt.Println("Logged out.")
	case "me":
		profile, err := session.RefreshProfile(ctx)
		run(err)
		printProfile(profile)
	case "stores":
		listings, err := feed.FetchNearby(ctx)
		run(err)
		printStores(listings)
	case "search":
		runSearch(location, *query)
	case "setlocation":
		if *placeID == "" {
			fatal("-place-id is required")
		}
		run(location.ResolvePlace(ctx, *placeID, *placeDesc))
		profile, _ := session.CurrentUser()
		fmt.Printf("Location set to %s\n", profile.LocationName)
	case "locate":
		run(location.UseCurrentLocation(ctx))
		profile, _ := session.CurrentUser()
		fmt.Printf("Location set to %s\n", profile.LocationName)
	case "chats":
		conversations, err := chat.Conversations(ctx)
		run(err)
		printConversations(conversations)
	case "open":
		if *conversation == "" {
			fatal("-conversation is required")
		}
		run(chat.Open(ctx, *conversation, store.UserSummary{ID: *receiver}))
		printTranscript(chat.Transcript())
	case "send":
		if *conversation == "" || *receiver == "" {
			fatal("-conversation and -receiver are required")
		}
		run(chat.Open(ctx, *conversation, store.UserSummary{ID: *receiver}))
		run(chat.SendMessage(ctx, *text))
		printTranscript(chat.Transcript())
	case "users":
		users, err := chat.Users(ctx)
		run(err)
		for _, u := range users {
			fmt.Printf("%s  %s  %s\n", u.ID, u.Username, u.Email)
		}
	case "newchat":
		if *receiver == "" {
			fatal("-receiver is required")
		}
		conversationID, err := chat.StartConversation(ctx, *receiver)
		run(err)
		fmt.Printf("Conversation %s created\n", conversationID)
	case "newstore":
		runNewStore(ctx, seller, *storeName, *description, *placeDesc, *phone, *category, *image)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func run(err error) {
	if err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}

// runSearch drives one debounced autocomplete round trip and prints the
// suggestions once the quiet window elapses.
func runSearch(location *core.LocationService, query string) {
	done := make(chan struct{})
	location.OnSuggestions(func(suggestions []store.Suggestion, err error) {
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		for _, s := range suggestions {
			fmt.Printf("%s  %s\n", s.PlaceID, s.Description)
		}
		close(done)
	})
	location.Search(query)
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		fatal("search timed out")
	}
}

func runNewStore(ctx context.Context, seller *core.SellerService, name, description, place, phone, category, imagePath string) {
	form := &core.RegistrationForm{
		StoreName:   name,
		Description: description,
		Place:       place,
		Phone:       phone,
		Category:    category,
	}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			fatal("could not read image: " + err.Error())
		}
		ext := strings.TrimPrefix(filepath.Ext(imagePath), ".")
		form.Logo = &core.ImageAsset{
			Name:        filepath.Base(imagePath),
			ContentType: "image/" + ext,
			Data:        data,
		}
	}
	storeID, err := seller.Submit(ctx, form)
	run(err)
	fmt.Printf("Store registered successfully (%s)\n", storeID)
}

func printProfile(p *store.UserProfile) {
	fmt.Printf("Username: %s\nEmail: %s\nRole: %s\n", p.Username, p.Email, p.Role)
	if coords, ok := p.Coordinates(); ok {
		fmt.Printf("Location: %s (%.4f, %.4f)\n", p.LocationName, coords.Latitude, coords.Longitude)
	}
	if p.StoreID != "" {
		fmt.Printf("Store: %s\n", p.StoreID)
	}
}

func printStores(listings []store.StoreListing) {
	if len(listings) == 0 {
		fmt.Println("No stores found nearby")
		return
	}
	for _, l := range listings {
		fmt.Printf("%s  %s  %.1f (%d)  %.1f km  %s\n", l.ID, l.Name, l.Rating, l.ReviewCount, l.Distance, l.Category)
	}
}

func printConversations(conversations []store.Conversation) {
	for _, c := range conversations {
		last := "Start a conversation"
		if c.LastMessage != nil {
			last = c.LastMessage.Content
		}
		fmt.Printf("%s  %s  %s\n", c.ID, c.OtherUser.Username, last)
	}
}

func printTranscript(messages []store.Message) {
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.Sender.Username, m.Text)
	}
}

// envLocator stands in for the device geolocation capability: coordinates
// come from LOCATION_LAT/LOCATION_LNG, and an unset pair behaves like a
// denied permission prompt.
type envLocator struct{}

func (envLocator) CurrentPosition(ctx context.Context) (store.Coordinates, error) {
	latStr, lngStr := os.Getenv("LOCATION_LAT"), os.Getenv("LOCATION_LNG")
	if latStr == "" || lngStr == "" {
		return store.Coordinates{}, core.ErrPermissionDenied
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return store.Coordinates{}, fmt.Errorf("invalid LOCATION_LAT: %w", err)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return store.Coordinates{}, fmt.Errorf("invalid LOCATION_LNG: %w", err)
	}
	return store.Coordinates{Latitude: lat, Longitude: lng}, nil
}

func (envLocator) ReverseGeocode(ctx context.Context, coords store.Coordinates) (core.Address, error) {
	return core.Address{
		City:    os.Getenv("LOCATION_CITY"),
		Region:  os.Getenv("LOCATION_REGION"),
		Country: os.Getenv("LOCATION_COUNTRY"),
	}, nil
}
