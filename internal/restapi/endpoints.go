package restapi

import (
	"context"
	"fmt"

	"gridlink.io/internal/protocol"
)

// SessionInfo is the identity the transport and every later call run under.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type PlayerInfo struct {
	Handle       string `json:"handle"`
	Balance      int64  `json:"balance"`
	Rating       int    `json:"rating"`
	CovertRating int    `json:"covert_rating"`
	CreditRating int    `json:"credit_rating"`
}

type GatewayInfo struct {
	CPUSpeed     int  `json:"cpu_speed"`
	ModemSpeed   int  `json:"modem_speed"`
	StorageSize  int  `json:"storage_size"`
	SelfDestruct bool `json:"self_destruct"`
	MotionSensor bool `json:"motion_sensor"`
}

type GatewayFiles struct {
	Gateway GatewayInfo          `json:"gateway"`
	Files   []protocol.FileEntry `json:"files"`
}

// Snapshot is the bulk initial-state fetch, also used to resynchronize
// after a reconnect.
type Snapshot struct {
	Player   PlayerInfo            `json:"player"`
	Gateway  GatewayInfo           `json:"gateway"`
	Chain    []protocol.BounceNode `json:"chain"`
	Messages []protocol.Message    `json:"messages"`
	Missions []protocol.Mission    `json:"missions"`
	Tasks    []protocol.TaskPatch  `json:"tasks"`
	GameTick uint64                `json:"game_tick"`
	Speed    protocol.Speed        `json:"speed"`
}

type GameRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastTick uint64 `json:"last_tick"`
	SavedAt  string `json:"saved_at"`
}

type SoftwareItem struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Price   int64  `json:"price"`
	Size    int    `json:"size"`
}

type HardwareItem struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value int    `json:"value"`
	Price int64  `json:"price"`
}

func (c *Client) Login(ctx context.Context, user, pass string) (SessionInfo, error) {
	var out SessionInfo
	err := c.post(ctx, "/v1/login", map[string]string{"user": user, "pass": pass}, &out)
	if err == nil {
		c.SetCredential(out.Token)
	}
	return out, err
}

func (c *Client) Register(ctx context.Context, user, pass, handle string) (SessionInfo, error) {
	var out SessionInfo
	err := c.post(ctx, "/v1/register",
		map[string]string{"user": user, "pass": pass, "handle": handle}, &out)
	if err == nil {
		c.SetCredential(out.Token)
	}
	return out, err
}

func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := c.get(ctx, "/v1/state", &out)
	return out, err
}

func (c *Client) SaveGame(ctx context.Context) error {
	return c.post(ctx, "/v1/save", nil, nil)
}

func (c *Client) ListGames(ctx context.Context) ([]GameRef, error) {
	var out []GameRef
	err := c.get(ctx, "/v1/games", &out)
	return out, err
}

func (c *Client) NewGame(ctx context.Context, name string) (GameRef, error) {
	var out GameRef
	err := c.post(ctx, "/v1/games", map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) LoadGame(ctx context.Context, id string) (Snapshot, error) {
	var out Snapshot
	err := c.post(ctx, "/v1/games/"+id+"/load", nil, &out)
	return out, err
}

func (c *Client) FetchMessages(ctx context.Context) ([]protocol.Message, error) {
	var out []protocol.Message
	err := c.get(ctx, "/v1/messages", &out)
	return out, err
}

func (c *Client) MarkMessageRead(ctx context.Context, id int) error {
	return c.post(ctx, fmt.Sprintf("/v1/messages/%d/read", id), nil, nil)
}

func (c *Client) FetchMissions(ctx context.Context) ([]protocol.Mission, error) {
	var out []protocol.Mission
	err := c.get(ctx, "/v1/missions", &out)
	return out, err
}

func (c *Client) FetchGateway(ctx context.Context) (GatewayFiles, error) {
	var out GatewayFiles
	err := c.get(ctx, "/v1/gateway", &out)
	return out, err
}

func (c *Client) DeleteFile(ctx context.Context, name string) error {
	return c.del(ctx, "/v1/gateway/files/"+name)
}

func (c *Client) FetchSoftwareCatalog(ctx context.Context) ([]SoftwareItem, error) {
	var out []SoftwareItem
	err := c.get(ctx, "/v1/catalog/software", &out)
	return out, err
}

func (c *Client) BuySoftware(ctx context.Context, name string, version int) error {
	return c.post(ctx, "/v1/buy/software",
		map[string]any{"name": name, "version": version}, nil)
}

func (c *Client) BuyHardware(ctx context.Context, name string) error {
	return c.post(ctx, "/v1/buy/hardware", map[string]string{"name": name}, nil)
}
