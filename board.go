/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"

	"github.com/Seednode/quizduel/games/duel"
)

// Board is the grid of tiles fought over by the two players. Each tile is
// owned by nobody or by the player who last won a duel on it.
type Board struct {
	Tiles  []duel.Player `json:"tiles"`
	Cursor int           `json:"cursor"`
}

func newBoard(size int) *Board {
	return &Board{Tiles: make([]duel.Player, size)}
}

func (b *Board) valid(tile int) bool {
	return tile >= 0 && tile < len(b.Tiles)
}

// Move places the cursor on tile.
func (b *Board) Move(tile int) bool {
	if !b.valid(tile) {
		return false
	}
	b.Cursor = tile
	return true
}

// Assign records the winner of a duel on tile. A duel without a winner
// leaves the tile as it was.
func (b *Board) Assign(tile int, p duel.Player) bool {
	if !b.valid(tile) || (p != duel.PlayerOne && p != duel.PlayerTwo) {
		return false
	}
	b.Tiles[tile] = p
	return true
}

// Owned returns how many tiles each player holds.
func (b *Board) Owned() (one, two int) {
	for _, p := range b.Tiles {
		switch p {
		case duel.PlayerOne:
			one++
		case duel.PlayerTwo:
			two++
		}
	}
	return one, two
}

func (b *Board) restore(tiles []duel.Player, cursor int) error {
	if len(tiles) != len(b.Tiles) {
		return fmt.Errorf("board has %d tiles, snapshot has %d", len(b.Tiles), len(tiles))
	}
	for i, p := range tiles {
		if p < duel.PlayerNone || p > duel.PlayerTwo {
			return fmt.Errorf("tile %d has invalid owner %d", i, p)
		}
	}
	copy(b.Tiles, tiles)
	if b.valid(cursor) {
		b.Cursor = cursor
	}
	return nil
}
