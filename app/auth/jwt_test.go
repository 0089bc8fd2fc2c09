package auth

import (
	"testing"

	"radio-stream/app/config"
)

func testJWTConfig(secret string) *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:     secret,
			ExpireTime: 1,
			Issuer:     "radio-stream",
		},
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService(testJWTConfig("test-secret"))

	token, err := svc.GenerateToken("admin")
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("验证令牌失败: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("用户名不符, 期望 admin, 实际 %s", claims.Username)
	}
	if claims.Issuer != "radio-stream" {
		t.Fatalf("签发者不符: %s", claims.Issuer)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewJWTService(testJWTConfig("test-secret"))
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("无效令牌应验证失败")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewJWTService(testJWTConfig("secret-a"))
	verifier := NewJWTService(testJWTConfig("secret-b"))

	token, err := issuer.GenerateToken("admin")
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("密钥不一致的令牌应验证失败")
	}
}
