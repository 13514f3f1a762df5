// Package model defines the database models for Hasad.
//
// # Accounts and authentication
//
//   - User: local accounts with lockout counters
//   - UserSession, Token: login sessions and the tokens bound to them
//   - MFAConfiguration: encrypted TOTP seeds and hashed backup codes
//   - OAuthAccount: links to external identity providers
//   - AuthLog: authentication history
//
// # Central memory
//
//   - Memory, Tag, Entity: the knowledge store and what it is about
//   - MemoryGrant: explicit per-user access
//   - MemoryAccessLog: every access decision
//
// # ERP
//
//   - PaymentOrder: payment requests with an approval workflow
//   - DebtRecord, DebtPayment: receivables and payables
//   - CropTaxon: the crop taxonomy tree
package model
