// Package risk classifies pest detection confidence into response
// tiers and maps each tier to its fixed action bundle.
package risk
